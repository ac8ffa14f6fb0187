package serializer

import (
	"github.com/mdouchement/mediastore/internal/media"
	"github.com/mdouchement/mediastore/internal/model"
)

// Records returns the serialized form of the given models.
func Records(records []*model.Record) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(records))

	for _, record := range records {
		sl = append(sl, Record(record))
	}

	return sl
}

// Record returns the serialized form of the given model.
func Record(record *model.Record) map[string]interface{} {
	return map[string]interface{}{
		"id":         record.ID,
		"caption":    record.Caption,
		"bucket":     record.Bucket,
		"filename":   record.Name,
		"file_id":    record.ObjectID,
		"created_at": record.CreatedAt,
	}
}

// Upload returns the serialized form of an upload result.
func Upload(result *media.Result) map[string]interface{} {
	return map[string]interface{}{
		"caption":      result.Caption,
		"bucket":       result.Bucket,
		"filename":     result.Name,
		"file_id":      result.ObjectID,
		"content_type": result.ContentType,
		"length":       result.Length,
		"created_at":   result.CreatedAt,
	}
}

// Outcomes returns the serialized form of the per file results of a multiple upload.
func Outcomes(files []media.File, outcomes []media.Outcome) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(outcomes))

	for i, outcome := range outcomes {
		if outcome.Err != nil {
			sl = append(sl, map[string]interface{}{
				"caption":           files[i].Caption,
				"original_filename": files[i].Filename,
				"error":             outcome.Err.Error(),
			})
			continue
		}

		sl = append(sl, Upload(outcome.Result))
	}

	return sl
}
