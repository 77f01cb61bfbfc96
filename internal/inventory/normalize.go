// Package inventory は在庫車両一覧のクライアント側コントローラーを提供する。
package inventory

import (
	"fmt"
	"strconv"

	"github.com/hitoshi/carman/internal/model"
)

// 欠損フィールドの既定値。サーバーの登録時既定値と揃えている。
const (
	defaultCategory     = model.CategorySedan
	defaultSeats        = 4
	defaultTransmission = "Automatic"
	defaultFuelType     = "Gasoline"
)

// Record は正規化済みの在庫車両レコード。
// IDは常に非空で、サーバーIDがない場合はローカル生成のプレースホルダーになる。
// ServerIDが空のレコードはクライアント側にしか存在せず、
// 削除・更新のリクエストを送ってはならない。
type Record struct {
	ID           string
	ServerID     string
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
	Description  string
	Images       []string
	PrimaryImage string
}

// Result は一覧取得の正規化済み結果。成功時に表示状態を丸ごと置き換える。
type Result struct {
	Records    []Record
	Page       int
	TotalPages int
	TotalCount int
}

// normalizeResult は一覧レスポンスの生データをResultに正規化する。
// ページ情報が欠けている場合はリクエスト値と件数から導出する。
func normalizeResult(raw map[string]any, requestedPage int, nextLocalID func() string) Result {
	var records []Record
	if cars, ok := raw["cars"].([]any); ok {
		records = make([]Record, 0, len(cars))
		for _, entry := range cars {
			car, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			records = append(records, normalizeRecord(car, nextLocalID))
		}
	}

	return Result{
		Records:    records,
		Page:       toInt(raw["page"], requestedPage),
		TotalPages: toInt(raw["pages"], 1),
		TotalCount: toInt(raw["total"], len(records)),
	}
}

// normalizeRecord は1件の生レコードをRecordに正規化する。
// 欠損フィールドはフィールドごとに定めた既定値で補完する。
func normalizeRecord(raw map[string]any, nextLocalID func() string) Record {
	serverID := toString(raw["id"], "")

	id := serverID
	if id == "" {
		id = nextLocalID()
	}

	images := normalizeImages(raw)
	primaryImage := ""
	if len(images) > 0 {
		primaryImage = images[0]
	}

	return Record{
		ID:           id,
		ServerID:     serverID,
		Make:         toString(raw["make"], ""),
		Model:        toString(raw["model"], ""),
		Year:         toInt(raw["year"], 0),
		Price:        toInt64(raw["price"], 0),
		Color:        toString(raw["color"], ""),
		Category:     toString(raw["category"], defaultCategory),
		Seats:        toInt(raw["seats"], defaultSeats),
		Transmission: toString(raw["transmission"], defaultTransmission),
		FuelType:     toString(raw["fuelType"], defaultFuelType),
		Engine:       toString(raw["engine"], ""),
		Horsepower:   toInt(raw["horsepower"], 0),
		Description:  toString(raw["description"], ""),
		Images:       images,
		PrimaryImage: primaryImage,
	}
}

// normalizeImages は画像フィールドを正規化する。
// 配列のimagesがなければ旧形式の単一imageフィールドを1要素の配列として扱う。
func normalizeImages(raw map[string]any) []string {
	if entries, ok := raw["images"].([]any); ok {
		images := make([]string, 0, len(entries))
		for _, entry := range entries {
			if s, ok := entry.(string); ok && s != "" {
				images = append(images, s)
			}
		}
		return images
	}

	if legacy := toString(raw["image"], ""); legacy != "" {
		return []string{legacy}
	}

	return []string{}
}

// toString は値を文字列として解釈する。解釈できない場合はfallbackを返す。
func toString(v any, fallback string) string {
	switch s := v.(type) {
	case string:
		if s == "" {
			return fallback
		}
		return s
	case float64:
		return strconv.FormatInt(int64(s), 10)
	default:
		return fallback
	}
}

// toInt は値を整数として解釈する。解釈できない場合はfallbackを返す。
func toInt(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
		return fallback
	default:
		return fallback
	}
}

// toInt64 は値を64bit整数として解釈する。解釈できない場合はfallbackを返す。
func toInt64(v any, fallback int64) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		if parsed, err := strconv.ParseInt(n, 10, 64); err == nil {
			return parsed
		}
		return fallback
	default:
		return fallback
	}
}

// localIDGenerator はサーバーIDを持たないレコードのプレースホルダーIDを生成する。
type localIDGenerator struct {
	seq int
}

func (g *localIDGenerator) next() string {
	g.seq++
	return fmt.Sprintf("local-%d", g.seq)
}
