package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Entry is one parsed JSON log line.
type Entry struct {
	Time    time.Time
	Level   string
	Msg     string
	Attrs   map[string]any
	Raw     string
	IsValid bool
}

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	Level   string         // minimum level shown
	Pattern *regexp.Regexp // only lines matching this
	NoColor bool
}

// Viewer reads, filters and prints amanread log files.
type Viewer struct {
	config ViewerConfig
	out    io.Writer
	levels map[string]lipgloss.Style
}

// NewViewer creates a log viewer writing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{
		config: cfg,
		out:    out,
		levels: map[string]lipgloss.Style{
			"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
			"ERROR": lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

// Tail returns the matching entries among the last n lines of path.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	var entries []Entry
	for _, line := range lines {
		entry := parseLine(line)
		if v.matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow streams entries appended to path after the call until ctx is done.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- Entry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		for {
			chunk, err := reader.ReadString('\n')
			partial += chunk
			if err != nil {
				break
			}

			line := strings.TrimSuffix(partial, "\n")
			partial = ""
			if line == "" {
				continue
			}

			entry := parseLine(line)
			if !v.matches(entry) {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Print writes formatted entries to the viewer's output.
func (v *Viewer) Print(entries []Entry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.Format(entry))
	}
}

// Format renders an entry as "15:04:05.000 LEVEL msg k=v ...".
// Unparseable lines are returned verbatim.
func (v *Viewer) Format(entry Entry) string {
	if !entry.IsValid {
		return entry.Raw
	}

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(entry.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(v.formatLevel(entry.Level))
	sb.WriteByte(' ')
	sb.WriteString(entry.Msg)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attrs[k])
	}
	return sb.String()
}

func (v *Viewer) formatLevel(level string) string {
	label := strings.ToUpper(level)
	if len(label) > 5 {
		label = label[:5]
	}
	padded := fmt.Sprintf("%-5s", label)

	if v.config.NoColor {
		return padded
	}
	if style, ok := v.levels[label]; ok {
		return style.Render(padded)
	}
	return padded
}

func (v *Viewer) matches(entry Entry) bool {
	if v.config.Level != "" && entry.IsValid {
		if LevelFromString(entry.Level) < LevelFromString(v.config.Level) {
			return false
		}
	}
	if v.config.Pattern != nil && !v.config.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

func parseLine(line string) Entry {
	entry := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.IsValid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	entry.Level, _ = data["level"].(string)
	entry.Msg, _ = data["msg"].(string)

	entry.Attrs = make(map[string]any, len(data))
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}
