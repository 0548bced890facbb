package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hktransit/hktransit/pkg/objects"
	"github.com/hktransit/hktransit/pkg/storage"
)

// maxDataSheetBytes bounds the dataset download.
const maxDataSheetBytes = 256 << 20

// datasetFetcher downloads the dataset checksum and payload and mirrors
// the last good payload through the storage collaborator, so a restart can
// come up without the upstream being reachable.
type datasetFetcher struct {
	checksumURL  string
	dataSheetURL string

	client *http.Client
	store  storage.Store
}

func newDatasetFetcher(checksumURL string, dataSheetURL string, store storage.Store) *datasetFetcher {
	return &datasetFetcher{
		checksumURL:  checksumURL,
		dataSheetURL: dataSheetURL,
		client:       &http.Client{Timeout: 5 * time.Minute},
		store:        store,
	}
}

// RemoteChecksum probes the upstream dataset version.
func (f *datasetFetcher) RemoteChecksum(ctx context.Context) (string, error) {
	body, err := f.get(ctx, f.checksumURL, 1024)
	if err != nil {
		return "", err
	}
	checksum := strings.TrimSpace(string(body))
	if checksum == "" {
		return "", errors.New("registry: empty checksum response")
	}
	return checksum, nil
}

// FetchDataSheet downloads the full dataset payload.
func (f *datasetFetcher) FetchDataSheet(ctx context.Context) ([]byte, error) {
	return f.get(ctx, f.dataSheetURL, maxDataSheetBytes)
}

func (f *datasetFetcher) get(ctx context.Context, url string, limit int64) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := f.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry: %s returned status %d", url, response.StatusCode)
	}
	return io.ReadAll(io.LimitReader(response.Body, limit))
}

// CachedDataSheet returns the stored payload and the checksum it was stored
// under. ok is false on a clean first run.
func (f *datasetFetcher) CachedDataSheet(ctx context.Context) (payload []byte, checksum string, ok bool) {
	payload, err := f.store.Get(ctx, storage.KeyDataSheet)
	if err != nil {
		return nil, "", false
	}
	stored, err := f.store.Get(ctx, storage.KeyDataChecksum)
	if err != nil {
		return nil, "", false
	}
	return payload, string(stored), true
}

// StoreDataSheet mirrors a validated payload and its checksum.
func (f *datasetFetcher) StoreDataSheet(ctx context.Context, payload []byte, checksum string) error {
	if err := f.store.Put(ctx, storage.KeyDataSheet, payload); err != nil {
		return err
	}
	return f.store.Put(ctx, storage.KeyDataChecksum, []byte(checksum))
}

// decodeDataSheet parses and validates a dataset payload. Invalid payloads
// are rejected whole; nothing is published from them.
func decodeDataSheet(payload []byte) (*objects.DataSheet, error) {
	var sheet objects.DataSheet
	if err := json.Unmarshal(payload, &sheet); err != nil {
		return nil, fmt.Errorf("registry: malformed data sheet: %w", err)
	}
	if err := sheet.Verify(); err != nil {
		return nil, fmt.Errorf("registry: invalid data sheet: %w", err)
	}
	return &sheet, nil
}
