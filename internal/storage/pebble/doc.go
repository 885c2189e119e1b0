// Package pebblestore persists ring buffer region images in Pebble so a
// restarted process can resume from its last checkpoint (a warm start), the
// way a device would from non-volatile memory.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	r := db.Region("main")
//	image, _ := r.Load() // nil on first run
//	_ = r.SaveRegion(image)
//
// Keys are "region/{name}" for the image and "regionmeta/{name}" for the
// save time.
package pebblestore
