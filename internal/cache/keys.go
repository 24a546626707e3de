package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func UploadStatusKey(uploadID uuid.UUID) string {
	return fmt.Sprintf("upload:%s", uploadID)
}

// ResultKey addresses the normalized result set of a backend run.
func ResultKey(runID string) string {
	return fmt.Sprintf("run:result:%s", runID)
}

func ModelsKey() string {
	return "backend:models"
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
