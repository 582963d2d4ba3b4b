package types

import "time"

// Scene field length limits.
const (
	MaxSceneNameLen        = 50
	MaxSceneDescriptionLen = 200
	MaxSceneContextLen     = 300
	MaxSceneAtmosphereLen  = 100

	DefaultAtmosphere = "neutral"
)

// Scene is the shared setting a conversation takes place in. Context is the
// narrative instruction block handed to every character; Atmosphere is a
// free-text mood tag.
type Scene struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Context         string    `json:"context"`
	Atmosphere      string    `json:"atmosphere"`
	BackgroundImage string    `json:"background_image,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SceneDraft carries incoming scene fields for creation or editing.
type SceneDraft struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Context         string `json:"context"`
	Atmosphere      string `json:"atmosphere,omitempty"`
	BackgroundImage string `json:"background_image,omitempty"`
}
