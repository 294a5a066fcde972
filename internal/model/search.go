package model

// ImageDocument 定义了存储在 Elasticsearch 中的图片文档结构。
type ImageDocument struct {
	ImageID    string   `json:"image_id"`
	Title      string   `json:"title"`
	Detail     string   `json:"detail"`
	Labels     []string `json:"labels"`
	URL        string   `json:"url"`
	PreviewURL string   `json:"preview_url"`
	Show       bool     `json:"show"`
	Del        bool     `json:"del"`
}

// SearchHit 是返回给前端的搜索结果。
type SearchHit struct {
	ImageID    string   `json:"imageId"`
	Title      string   `json:"title"`
	Labels     []string `json:"labels"`
	PreviewURL string   `json:"previewUrl"`
	Score      float64  `json:"score"`
}
