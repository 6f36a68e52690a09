package backend

// ImageMetadata is the user-facing metadata stored with an image. The backend
// may return more keys; they are ignored here and preserved by Forward.
type ImageMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	TakenTime   string `json:"taken_time,omitempty"`
	Camera      string `json:"camera,omitempty"`
}

// GalleryImage is one image record. Score is only meaningful for search and
// similar-image results.
type GalleryImage struct {
	ID          string         `json:"id,omitempty"`
	PreviewURL  string         `json:"preview_url"`
	OriginalURL string         `json:"original_url"`
	Score       float64        `json:"score"`
	Metadata    *ImageMetadata `json:"metadata,omitempty"`
}

// Title returns the metadata title or "".
func (g GalleryImage) Title() string {
	if g.Metadata == nil {
		return ""
	}
	return g.Metadata.Title
}

// GalleryPage is one page of the browse listing. NextCursor is nil on the last page.
type GalleryPage struct {
	Items      []GalleryImage `json:"items"`
	NextCursor *string        `json:"next_cursor"`
}

// EmptyPage returns the page served when the backend is unavailable.
func EmptyPage() GalleryPage {
	return GalleryPage{Items: []GalleryImage{}}
}

// Description is a generated title and description.
type Description struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IngestRequest describes one upload. Empty optional fields are omitted from the form.
type IngestRequest struct {
	FilePath    string
	FileName    string
	ContentType string
	Title       string
	Description string
	TakenTime   string
	Camera      string
}

// IngestResult is the backend's acknowledgement of an upload.
type IngestResult struct {
	Status      string `json:"status"`
	ID          string `json:"id"`
	PreviewURL  string `json:"preview_url"`
	OriginalURL string `json:"original_url"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type similarRequest struct {
	ImageURL string `json:"image_url"`
	Limit    int    `json:"limit"`
}

type randomQueryResponse struct {
	Query string `json:"query"`
}

type autocompleteResponse struct {
	Suggestions []string `json:"suggestions"`
}
