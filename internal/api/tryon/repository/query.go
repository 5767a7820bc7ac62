package tryonRepository

const (
	queryGetProfileByProductID = `
		SELECT
			id,
			name,
			tryon_model_url,
			tryon_default_scale
		FROM products
		WHERE id = :id
			AND tryon_model_url IS NOT NULL
			AND tryon_model_url <> ''
	`

	queryListProfiles = `
		SELECT
			id,
			name,
			tryon_model_url,
			tryon_default_scale
		FROM products
		WHERE tryon_model_url IS NOT NULL
			AND tryon_model_url <> ''
		ORDER BY name ASC
		LIMIT :limit OFFSET :offset
	`
)
