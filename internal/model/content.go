package model

// ContentRecord 内容目录中的一条（电影）记录，由外部导入流程写入，本服务只读
type ContentRecord struct {
	ProgramID int64      `json:"program_id" gorm:"column:program_id;primaryKey"`
	Title     string     `json:"title" gorm:"column:title"`
	Year      *int       `json:"year" gorm:"column:year"`
	ImageURL  string     `json:"image_url" gorm:"column:image_url"`
	Plot      string     `json:"Plot" gorm:"column:Plot"`
	Starring  StringList `json:"Starring" gorm:"column:Starring"`
	Crew      CrewList   `json:"principalCrewMembers" gorm:"column:principalCrewMembers"`
}

// TableName 对应原有的 content_details 表
func (ContentRecord) TableName() string {
	return "content_details"
}

// ContentSummary 搜索列表使用的轻量结构
type ContentSummary struct {
	ProgramID int64  `json:"program_id" gorm:"column:program_id"`
	Title     string `json:"title" gorm:"column:title"`
	Year      *int   `json:"year" gorm:"column:year"`
	ImageURL  string `json:"image_url" gorm:"column:image_url"`
}

// TableName 与 ContentRecord 共用一张表
func (ContentSummary) TableName() string {
	return "content_details"
}

// WatchedItem 观看历史中的一项，用于拼装主题提取的提示词
type WatchedItem struct {
	Title    string `json:"title"`
	Plot     string `json:"plot"`
	Starring string `json:"starring"`
	Director string `json:"director"`
}

// Recommendation 推荐结果，顺序即相似度排名
type Recommendation struct {
	ProgramID string `json:"program_id"`
	Title     string `json:"title"`
	Year      *int   `json:"year"`
	ImageURL  string `json:"image_url"`
}
