package dto

// DocumentBatchRequest creates several documents of one collection.
type DocumentBatchRequest struct {
	Items []map[string]any `json:"items" validate:"required,min=1,dive,required"`
}
