package entity

import "time"

// NormalizedModelAsset is the one-time calibration of a glasses model. Applying
// Offset then Scale to the source geometry centers the lenses on the local origin
// and fits the frame to the target width.
type NormalizedModelAsset struct {
	ModelURL      string    `json:"model_url"`
	Offset        Vec3      `json:"offset"`
	Scale         float64   `json:"scale"`
	SourceMin     Vec3      `json:"source_min"`
	SourceMax     Vec3      `json:"source_max"`
	NormalizedMin Vec3      `json:"normalized_min"`
	NormalizedMax Vec3      `json:"normalized_max"`
	TargetWidth   float64   `json:"target_width"`
	ComputedAt    time.Time `json:"computed_at"`
	// DownloadURL is a short-lived URL for models kept in private storage.
	DownloadURL   string    `json:"download_url,omitempty"`
}

// TryOnProfile is the caller-supplied configuration of a try-on view.
type TryOnProfile struct {
	ProductID    string  `json:"product_id,omitempty"`
	ProductName  string  `json:"product_name"`
	ModelURL     string  `json:"model_url"`
	DefaultScale float64 `json:"default_scale"`
}
