package storage

import "context"

// ObjectClient is the minio client subset used by ObjectSink.
type ObjectClient = objectClient

// NewObjectSinkWithClient creates an ObjectSink using client instead of connecting to an object store.
func NewObjectSinkWithClient(ctx context.Context, client ObjectClient, cfg ObjectConfig, namer *Namer, args ...Options) (*ObjectSink, error) {
	return newObjectSink(ctx, client, cfg, namer, args...)
}
