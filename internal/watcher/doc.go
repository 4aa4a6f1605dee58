// Package watcher turns an inbox directory into a stream of documents to add.
//
// Files dropped into the inbox are detected with fsnotify, or by polling when
// fsnotify cannot be initialised (network mounts, some container volumes).
// Rapid write bursts from editors and downloads are debounced into a single
// event per file before the Importer hands each path to the library.
//
// Usage:
//
//	w, err := watcher.NewInboxWatcher(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	imp := watcher.NewImporter(add)
//	go func() { _ = w.Start(ctx, dir) }()
//	return imp.Run(ctx, w.Events())
package watcher
