// Package model はドメインモデルを定義する。
package model

import "time"

// 車両カテゴリの既定値。未指定の車両はCategorySedanとして扱う。
const (
	CategorySedan     = "Sedan"
	CategorySUV       = "SUV"
	CategorySports    = "Sports"
	CategoryCoupe     = "Coupe"
	CategoryHatchback = "Hatchback"
	CategoryLuxury    = "Luxury"
)

// CategoryAll はカテゴリフィルタの「全件」を表す特別値。
// リクエストパラメータには送信されない。
const CategoryAll = "all"

// Car は在庫車両を表す。
type Car struct {
	ID           string
	Make         string
	Model        string
	Year         int
	Price        int64
	Color        string
	Category     string
	Seats        int
	Transmission string
	FuelType     string
	Engine       string
	Horsepower   int
	Description  string // サニタイズ済み
	Images       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrimaryImage は代表画像URLを返す。画像がない場合は空文字列。
func (c *Car) PrimaryImage() string {
	if len(c.Images) == 0 {
		return ""
	}
	return c.Images[0]
}

// CarPage は車両一覧のページング結果を表す。
type CarPage struct {
	Cars  []*Car
	Page  int
	Pages int
	Total int
}

// CarListQuery は車両一覧の取得条件を表す。
// CategoryがCategoryAllまたは空の場合はカテゴリで絞り込まない。
type CarListQuery struct {
	Page     int
	Limit    int
	Category string
}
