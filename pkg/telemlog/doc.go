// Package telemlog is a size-bounded, crash-tolerant, append-only log store
// for fixed-format binary telemetry records. Each onboard subsystem
// ("module") registers once with an immutable record size and then appends
// framed records to numbered data files under log/<module>/; the store
// rotates the active file before it would exceed its size limit and evicts
// the oldest file once the directory's byte budget is exceeded, so disk
// usage stays bounded under continuous writes.
//
// Retrieval answers "the most recent N records" by scanning files backward
// from the active index. Because every frame of a module has the same size,
// frame boundaries follow from file length alone; no per-record index is
// kept.
//
// # Layout
//
//	log/<module>/settings.cfg   max file size and max dir size, one per line
//	log/<module>/index.inf      active data file index
//	log/<module>/module.inf     fixed record size
//	log/<module>/<N>.dat        frames: "FBEGIN" + record + "FEND"
//
// # Usage
//
//	store, err := telemlog.Open("log", telemlog.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	power, err := store.Register("power", 64)
//	if err != nil {
//	    return err
//	}
//	if err := power.Append(sample); err != nil {
//	    // telemetry is best-effort; log and drop
//	}
//	recent, err := power.RetrieveLatest(10)
//
// A module handle serializes its own operations; one writer per module is
// the supported concurrency model, and retrieval may run from any goroutine.
package telemlog
