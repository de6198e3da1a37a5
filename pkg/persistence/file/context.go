package file

import (
	"context"
	"sort"

	"github.com/dukex/operion-gateway/pkg/models"
)

func (fp *Persistence) DocumentsByWorkflowID(_ context.Context, workflowID string, isCurrentOnly bool) ([]*models.Document, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	documents, err := readAll[models.Document](fp, documentsDir)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Document, 0, len(documents))

	for _, document := range documents {
		if document.WorkflowID != workflowID {
			continue
		}

		if isCurrentOnly && !document.IsCurrent {
			continue
		}

		filtered = append(filtered, document)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	return filtered, nil
}

func (fp *Persistence) EventsByWorkflowID(_ context.Context, workflowID string) ([]*models.Event, error) {
	fp.mu.RLock()
	defer fp.mu.RUnlock()

	events, err := readAll[models.Event](fp, eventsDir)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Event, 0, len(events))

	for _, event := range events {
		if event.WorkflowID == workflowID {
			filtered = append(filtered, event)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	return filtered, nil
}
