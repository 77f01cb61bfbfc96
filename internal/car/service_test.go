package car

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/carman/internal/model"
	"github.com/hitoshi/carman/internal/repository"
)

// mockCarRepo はCarRepositoryのモック実装。
type mockCarRepo struct {
	findByIDFunc   func(ctx context.Context, id string) (*model.Car, error)
	listFunc       func(ctx context.Context, query model.CarListQuery) (*model.CarPage, error)
	createFunc     func(ctx context.Context, car *model.Car) error
	updateFunc     func(ctx context.Context, car *model.Car) (bool, error)
	deleteByIDFunc func(ctx context.Context, id string) (bool, error)
}

func (m *mockCarRepo) FindByID(ctx context.Context, id string) (*model.Car, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockCarRepo) List(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
	return m.listFunc(ctx, query)
}

func (m *mockCarRepo) Create(ctx context.Context, car *model.Car) error {
	return m.createFunc(ctx, car)
}

func (m *mockCarRepo) Update(ctx context.Context, car *model.Car) (bool, error) {
	return m.updateFunc(ctx, car)
}

func (m *mockCarRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	return m.deleteByIDFunc(ctx, id)
}

var _ repository.CarRepository = (*mockCarRepo)(nil)

// passthroughSanitizer は入力をそのまま返すサニタイザ。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(html string) string { return html }

// mockImageFetcher はImageFetcherServiceのモック実装。
type mockImageFetcher struct {
	fetchImageFunc func(ctx context.Context, imageURL string) ([]byte, string, error)
}

func (m *mockImageFetcher) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	return m.fetchImageFunc(ctx, imageURL)
}

// mockImageStore はImageStoreのモック実装。保存順にパスを払い出す。
type mockImageStore struct {
	saved []string
}

func (m *mockImageStore) Save(data []byte, ext string) (string, error) {
	path := "/uploads/img" + ext
	m.saved = append(m.saved, path)
	return path, nil
}

func newTestService(repo *mockCarRepo, fetcher *mockImageFetcher, store *mockImageStore) *Service {
	if fetcher == nil {
		fetcher = &mockImageFetcher{
			fetchImageFunc: func(ctx context.Context, imageURL string) ([]byte, string, error) {
				return []byte("img"), ".jpg", nil
			},
		}
	}
	if store == nil {
		store = &mockImageStore{}
	}
	return NewService(repo, passthroughSanitizer{}, fetcher, store, 12)
}

func TestService_List(t *testing.T) {
	t.Run("負のページ番号はエラー", func(t *testing.T) {
		svc := newTestService(&mockCarRepo{}, nil, nil)

		_, err := svc.List(context.Background(), model.CarListQuery{Page: -1})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidPage {
			t.Errorf("error = %v, want INVALID_PAGE", err)
		}
	})

	t.Run("未指定のページとlimitに既定値を補完する", func(t *testing.T) {
		var got model.CarListQuery
		repo := &mockCarRepo{
			listFunc: func(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
				got = query
				return &model.CarPage{Page: query.Page, Pages: 1}, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		if _, err := svc.List(context.Background(), model.CarListQuery{}); err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got.Page != 1 {
			t.Errorf("Page = %d, want 1", got.Page)
		}
		if got.Limit != 12 {
			t.Errorf("Limit = %d, want 12", got.Limit)
		}
	})

	t.Run("limitは上限でクランプされる", func(t *testing.T) {
		var got model.CarListQuery
		repo := &mockCarRepo{
			listFunc: func(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
				got = query
				return &model.CarPage{}, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		if _, err := svc.List(context.Background(), model.CarListQuery{Page: 1, Limit: 500}); err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got.Limit != maxPageSize {
			t.Errorf("Limit = %d, want %d", got.Limit, maxPageSize)
		}
	})

	t.Run("カテゴリallは絞り込みなしに変換される", func(t *testing.T) {
		var got model.CarListQuery
		repo := &mockCarRepo{
			listFunc: func(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
				got = query
				return &model.CarPage{}, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		if _, err := svc.List(context.Background(), model.CarListQuery{Page: 1, Category: model.CategoryAll}); err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if got.Category != "" {
			t.Errorf("Category = %q, want empty", got.Category)
		}
	})
}

func TestService_Create(t *testing.T) {
	t.Run("メーカー名が空ならエラー", func(t *testing.T) {
		svc := newTestService(&mockCarRepo{}, nil, nil)

		_, err := svc.Create(context.Background(), &Input{Model: "Corolla"}, nil, nil)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidationFailed {
			t.Errorf("error = %v, want VALIDATION_FAILED", err)
		}
	})

	t.Run("未指定のフィールドに既定値が補完される", func(t *testing.T) {
		var created *model.Car
		repo := &mockCarRepo{
			createFunc: func(ctx context.Context, car *model.Car) error {
				created = car
				return nil
			},
		}
		svc := newTestService(repo, nil, nil)

		_, err := svc.Create(context.Background(), &Input{Make: "Toyota", Model: "Corolla"}, nil, nil)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if created.Category != model.CategorySedan {
			t.Errorf("Category = %q, want %q", created.Category, model.CategorySedan)
		}
		if created.Seats != 4 {
			t.Errorf("Seats = %d, want 4", created.Seats)
		}
		if created.Transmission != "Automatic" {
			t.Errorf("Transmission = %q, want Automatic", created.Transmission)
		}
		if created.FuelType != "Gasoline" {
			t.Errorf("FuelType = %q, want Gasoline", created.FuelType)
		}
		if created.ID == "" {
			t.Error("ID should be assigned")
		}
	})

	t.Run("アップロード画像とURL画像が順に保存される", func(t *testing.T) {
		var created *model.Car
		repo := &mockCarRepo{
			createFunc: func(ctx context.Context, car *model.Car) error {
				created = car
				return nil
			},
		}
		store := &mockImageStore{}
		fetcher := &mockImageFetcher{
			fetchImageFunc: func(ctx context.Context, imageURL string) ([]byte, string, error) {
				return []byte("remote"), ".png", nil
			},
		}
		svc := newTestService(repo, fetcher, store)

		uploads := []Upload{{Data: []byte("up"), Ext: ".jpg"}}
		_, err := svc.Create(context.Background(), &Input{Make: "Toyota", Model: "Corolla"}, uploads, []string{"https://cdn.example.com/a.png"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		if len(created.Images) != 2 {
			t.Fatalf("len(Images) = %d, want 2", len(created.Images))
		}
		if created.PrimaryImage() != created.Images[0] {
			t.Errorf("PrimaryImage() = %q, want first image", created.PrimaryImage())
		}
	})

	t.Run("画像取得エラーはそのまま返す", func(t *testing.T) {
		fetcher := &mockImageFetcher{
			fetchImageFunc: func(ctx context.Context, imageURL string) ([]byte, string, error) {
				return nil, "", model.NewImageBlockedError()
			},
		}
		svc := newTestService(&mockCarRepo{}, fetcher, nil)

		_, err := svc.Create(context.Background(), &Input{Make: "Toyota", Model: "Corolla"}, nil, []string{"http://10.0.0.1/a.jpg"})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeImageBlocked {
			t.Errorf("error = %v, want IMAGE_BLOCKED", err)
		}
	})
}

func TestService_Update(t *testing.T) {
	t.Run("存在しない車両はエラー", func(t *testing.T) {
		repo := &mockCarRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.Car, error) {
				return nil, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		_, err := svc.Update(context.Background(), "missing", &Input{Make: "Toyota", Model: "Corolla"})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCarNotFound {
			t.Errorf("error = %v, want CAR_NOT_FOUND", err)
		}
	})

	t.Run("更新時に画像リストは維持される", func(t *testing.T) {
		existing := &model.Car{
			ID:     "car-1",
			Make:   "Toyota",
			Model:  "Corolla",
			Images: []string{"/uploads/a.jpg", "/uploads/b.jpg"},
		}
		var updated *model.Car
		repo := &mockCarRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.Car, error) {
				return existing, nil
			},
			updateFunc: func(ctx context.Context, car *model.Car) (bool, error) {
				updated = car
				return true, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		_, err := svc.Update(context.Background(), "car-1", &Input{Make: "Honda", Model: "Civic", Year: 2022})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		if updated.Make != "Honda" || updated.Model != "Civic" || updated.Year != 2022 {
			t.Errorf("fields not applied: %+v", updated)
		}
		if len(updated.Images) != 2 {
			t.Errorf("len(Images) = %d, want 2 (preserved)", len(updated.Images))
		}
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("存在しない車両はエラー", func(t *testing.T) {
		repo := &mockCarRepo{
			deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
				return false, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		err := svc.Delete(context.Background(), "missing")
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCarNotFound {
			t.Errorf("error = %v, want CAR_NOT_FOUND", err)
		}
	})

	t.Run("削除成功", func(t *testing.T) {
		repo := &mockCarRepo{
			deleteByIDFunc: func(ctx context.Context, id string) (bool, error) {
				return true, nil
			},
		}
		svc := newTestService(repo, nil, nil)

		if err := svc.Delete(context.Background(), "car-1"); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
	})
}
