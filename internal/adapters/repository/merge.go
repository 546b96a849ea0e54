package repository

import (
	"encoding/json"
	"fmt"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// mergeReport overlays patch on base field by field using the JSON names.
// "id" is ignored and unknown keys are dropped.
func mergeReport(base model.Report, patch map[string]any) (model.Report, error) {
	raw, err := json.Marshal(base)
	if err != nil {
		return model.Report{}, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Report{}, err
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return model.Report{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	var out model.Report
	if err := json.Unmarshal(merged, &out); err != nil {
		return model.Report{}, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	out.ID = base.ID
	return out, nil
}
