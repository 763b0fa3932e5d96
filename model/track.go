package model

// TrackInfo represents catalog metadata for a playable item. It is cached as
// an opaque JSON blob keyed by the item's id.
type TrackInfo struct {
	Id       ItemId  `json:"id"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	Duration float32 `json:"duration"` // Duration in seconds
	FileId   FileId  `json:"fileId"`   // CDN file identifier of the preferred encoding
	Format   string  `json:"format"`   // Audio format: vorbis, mp3
}
