package car

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/carman/internal/model"
)

// Input は車両の登録・更新フォームの入力値を表す。
type Input struct {
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
}

// ParseInput はフォーム値からInputを構築する。
// 数値フィールドは空の場合ゼロ値とし、数値として解釈できない場合は
// 検証エラーを返す。必須チェックや既定値の補完はService側で行う。
func ParseInput(values url.Values) (*Input, error) {
	in := &Input{
		Make:         strings.TrimSpace(values.Get("make")),
		Model:        strings.TrimSpace(values.Get("model")),
		Color:        strings.TrimSpace(values.Get("color")),
		Category:     strings.TrimSpace(values.Get("category")),
		Transmission: strings.TrimSpace(values.Get("transmission")),
		FuelType:     strings.TrimSpace(values.Get("fuelType")),
		Engine:       strings.TrimSpace(values.Get("engine")),
		Description:  values.Get("description"),
	}

	var err error
	if in.Year, err = parseIntField(values.Get("year"), "year"); err != nil {
		return nil, err
	}
	if in.Price, err = parseInt64Field(values.Get("price"), "price"); err != nil {
		return nil, err
	}
	if in.Seats, err = parseIntField(values.Get("seats"), "seats"); err != nil {
		return nil, err
	}
	if in.Horsepower, err = parseIntField(values.Get("horsepower"), "horsepower"); err != nil {
		return nil, err
	}

	return in, nil
}

func parseIntField(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(fmt.Sprintf("%sは数値で指定してください", field))
	}
	return n, nil
}

func parseInt64Field(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, model.NewValidationError(fmt.Sprintf("%sは数値で指定してください", field))
	}
	return n, nil
}
