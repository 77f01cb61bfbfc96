package car

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/carman/internal/model"
	"github.com/hitoshi/carman/internal/repository"
)

// maxPageSize は一覧取得の1ページあたり件数の上限。
const maxPageSize = 100

// Sanitizer は説明文サニタイズのインターフェース。
// テスタビリティのためsecurity.ContentSanitizerを抽象化する。
type Sanitizer interface {
	Sanitize(html string) string
}

// Upload はアップロードされた画像ファイルを表す。
type Upload struct {
	Data []byte
	Ext  string
}

// Service は在庫車両管理のサービス層。
// 入力検証 → 既定値補完 → 画像保存 → 永続化のフローを統括する。
type Service struct {
	carRepo         repository.CarRepository
	sanitizer       Sanitizer
	imageFetcher    ImageFetcherService
	imageStore      ImageStore
	defaultPageSize int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	carRepo repository.CarRepository,
	sanitizer Sanitizer,
	imageFetcher ImageFetcherService,
	imageStore ImageStore,
	defaultPageSize int,
) *Service {
	return &Service{
		carRepo:         carRepo,
		sanitizer:       sanitizer,
		imageFetcher:    imageFetcher,
		imageStore:      imageStore,
		defaultPageSize: defaultPageSize,
	}
}

// List は取得条件に従って車両一覧をページング付きで返す。
// ページ番号は1始まり。0は未指定として1に補完し、負数はエラーとする。
func (s *Service) List(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
	if query.Page < 0 {
		return nil, model.NewInvalidPageError(query.Page)
	}
	if query.Page == 0 {
		query.Page = 1
	}

	if query.Limit <= 0 {
		query.Limit = s.defaultPageSize
	}
	if query.Limit > maxPageSize {
		query.Limit = maxPageSize
	}

	if query.Category == model.CategoryAll {
		query.Category = ""
	}

	page, err := s.carRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("車両一覧の取得に失敗しました: %w", err)
	}
	return page, nil
}

// Get は指定IDの車両を取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Car, error) {
	car, err := s.carRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("車両の取得に失敗しました: %w", err)
	}
	if car == nil {
		return nil, model.NewCarNotFoundError(id)
	}
	return car, nil
}

// Create は車両を登録する。
// アップロード画像とリモート画像URLの両方を受け付け、保存順に画像リストへ格納する。
// 先頭の画像が代表画像となる。
func (s *Service) Create(ctx context.Context, in *Input, uploads []Upload, imageURLs []string) (*model.Car, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	images, err := s.storeImages(ctx, uploads, imageURLs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	car := &model.Car{
		ID:        uuid.New().String(),
		Images:    images,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.applyInput(car, in)

	if err := s.carRepo.Create(ctx, car); err != nil {
		return nil, fmt.Errorf("車両の登録に失敗しました: %w", err)
	}

	return car, nil
}

// Update は車両情報を全項目更新する。画像リストは変更しない。
func (s *Service) Update(ctx context.Context, id string, in *Input) (*model.Car, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	car, err := s.carRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("車両の取得に失敗しました: %w", err)
	}
	if car == nil {
		return nil, model.NewCarNotFoundError(id)
	}

	s.applyInput(car, in)
	car.UpdatedAt = time.Now()

	updated, err := s.carRepo.Update(ctx, car)
	if err != nil {
		return nil, fmt.Errorf("車両の更新に失敗しました: %w", err)
	}
	if !updated {
		return nil, model.NewCarNotFoundError(id)
	}

	return car, nil
}

// Delete は指定IDの車両を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.carRepo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("車両の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewCarNotFoundError(id)
	}
	return nil
}

// validateInput は必須フィールドを検証する。
func validateInput(in *Input) error {
	if in.Make == "" {
		return model.NewValidationError("メーカー名は必須です")
	}
	if in.Model == "" {
		return model.NewValidationError("モデル名は必須です")
	}
	if in.Year < 0 || in.Price < 0 || in.Seats < 0 || in.Horsepower < 0 {
		return model.NewValidationError("数値フィールドに負の値は指定できません")
	}
	return nil
}

// applyInput は入力値を車両に反映し、未指定のフィールドに既定値を補完する。
func (s *Service) applyInput(car *model.Car, in *Input) {
	car.Make = in.Make
	car.Model = in.Model
	car.Year = in.Year
	car.Price = in.Price
	car.Color = in.Color
	car.Category = in.Category
	car.Seats = in.Seats
	car.Transmission = in.Transmission
	car.FuelType = in.FuelType
	car.Engine = in.Engine
	car.Horsepower = in.Horsepower
	car.Description = s.sanitizer.Sanitize(in.Description)

	if car.Category == "" {
		car.Category = model.CategorySedan
	}
	if car.Seats == 0 {
		car.Seats = 4
	}
	if car.Transmission == "" {
		car.Transmission = "Automatic"
	}
	if car.FuelType == "" {
		car.FuelType = "Gasoline"
	}
}

// storeImages はアップロード画像とリモート画像URLを保存し、公開URLパスのリストを返す。
func (s *Service) storeImages(ctx context.Context, uploads []Upload, imageURLs []string) ([]string, error) {
	images := make([]string, 0, len(uploads)+len(imageURLs))

	for _, up := range uploads {
		path, err := s.imageStore.Save(up.Data, up.Ext)
		if err != nil {
			return nil, fmt.Errorf("アップロード画像の保存に失敗しました: %w", err)
		}
		images = append(images, path)
	}

	for _, rawURL := range imageURLs {
		data, ext, err := s.imageFetcher.FetchImage(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		path, err := s.imageStore.Save(data, ext)
		if err != nil {
			return nil, fmt.Errorf("取得画像の保存に失敗しました: %w", err)
		}
		images = append(images, path)
	}

	return images, nil
}
