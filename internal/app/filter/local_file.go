package filter

import "context"

// LocalFileFilter rejects local files, which cannot be started on a
// Spotify Connect device.
type LocalFileFilter struct{}

// NewLocalFileFilter creates a new LocalFileFilter.
func NewLocalFileFilter() *LocalFileFilter {
	return &LocalFileFilter{}
}

func (f *LocalFileFilter) Name() string {
	return "local_file_filter"
}

func (f *LocalFileFilter) Description() string {
	return "Rejects local files that cannot be played remotely"
}

func (f *LocalFileFilter) ReturnCodes() []string {
	return []string{"local_file"}
}

func (f *LocalFileFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *LocalFileFilter) Check(ctx context.Context, e Entry) Result {
	if e.IsLocal {
		return Reject("local_file")
	}
	return Accept()
}
