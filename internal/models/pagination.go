package models

// Pagination 列表分页信息（page 从 1 开始）
type Pagination struct {
	Size       int `json:"size"`
	Page       int `json:"page"`
	Count      int `json:"count"`
	TotalPages int `json:"total_pages"`
}

// RecordPage 一页记录 + 分页 + 当前搜索词
type RecordPage struct {
	Items      []map[string]any `json:"items"`
	Pagination Pagination       `json:"pagination"`
	Search     string           `json:"search"`
}
