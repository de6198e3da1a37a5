// Package file provides file-based persistence implementation for gateway evaluation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	gatewayTypesDir      = "gateway_types"
	gatewayTemplatesDir  = "gateway_templates"
	gatewaysDir          = "gateways"
	workflowsDir         = "workflows"
	workflowTemplatesDir = "workflow_templates"
	workflowHistoriesDir = "workflow_histories"
	documentsDir         = "documents"
	eventsDir            = "events"
	workflowDebugsDir    = "workflow_debugs"
	workflowErrorsDir    = "workflow_errors"
)

// Persistence stores every record as a JSON file below root/<collection>/<id>.json.
type Persistence struct {
	root string
	mu   sync.RWMutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{
		root: strings.Replace(root, "file://", "", 1),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Save writes v into collection under id. It is exported so fixtures can be seeded.
func (fp *Persistence) Save(collection, id string, v any) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.write(collection, id, v, true)
}

func (fp *Persistence) write(collection, id string, v any, overwrite bool) error {
	dir := path.Join(fp.root, collection)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create %s directory: %w", collection, err)
	}

	filePath := filepath.Clean(path.Join(dir, id+".json"))

	if !overwrite {
		if _, err := os.Stat(filePath); err == nil {
			return fs.ErrExist
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", collection, id, err)
	}

	err = os.WriteFile(filePath, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write %s %s: %w", collection, id, err)
	}

	return nil
}

// read decodes root/collection/id.json into v. It returns false when the file does not exist.
func (fp *Persistence) read(collection, id string, v any) (bool, error) {
	filePath := filepath.Clean(path.Join(fp.root, collection, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to fetch %s %s: %w", collection, id, err)
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s %s: %w", collection, id, err)
	}

	return true, nil
}

// readAll decodes every JSON file of a collection, in file name order.
func readAll[T any](fp *Persistence, collection string) ([]*T, error) {
	jsonFiles, err := fs.Glob(os.DirFS(path.Join(fp.root, collection)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", collection, err)
	}

	items := make([]*T, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		var item T

		found, err := fp.read(collection, strings.TrimSuffix(file, ".json"), &item)
		if err != nil {
			return nil, err
		}

		if found {
			items = append(items, &item)
		}
	}

	return items, nil
}

func int64ID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func isExist(err error) bool {
	return errors.Is(err, fs.ErrExist)
}
