package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/carman/internal/model"
)

// PostgresCarRepo はPostgreSQLを使用した車両リポジトリ。
type PostgresCarRepo struct {
	db *sql.DB
}

// NewPostgresCarRepo はPostgresCarRepoを生成する。
func NewPostgresCarRepo(db *sql.DB) *PostgresCarRepo {
	return &PostgresCarRepo{db: db}
}

// carColumns はcarsテーブルのSELECT列リスト。
const carColumns = `id, make, model, year, price, color, category, seats,
	transmission, fuel_type, engine, horsepower, description, images, created_at, updated_at`

// FindByID は指定IDの車両を取得する。見つからない場合はnilを返す。
func (r *PostgresCarRepo) FindByID(ctx context.Context, id string) (*model.Car, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+carColumns+` FROM cars WHERE id = $1`,
		id,
	)

	car, err := scanCar(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find car by ID: %w", err)
	}

	return car, nil
}

// List は取得条件に従って車両一覧をページング付きで返す。
// 新着順（created_at降順）で並べ、総件数から総ページ数を算出する。
func (r *PostgresCarRepo) List(ctx context.Context, query model.CarListQuery) (*model.CarPage, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 12
	}

	filtered := query.Category != "" && query.Category != model.CategoryAll

	// 総件数の取得
	var total int
	var err error
	if filtered {
		err = r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cars WHERE category = $1`, query.Category,
		).Scan(&total)
	} else {
		err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cars`).Scan(&total)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to count cars: %w", err)
	}

	pages := (total + limit - 1) / limit
	if pages < 1 {
		pages = 1
	}

	offset := (page - 1) * limit

	var rows *sql.Rows
	if filtered {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+carColumns+` FROM cars
			 WHERE category = $1
			 ORDER BY created_at DESC, id
			 LIMIT $2 OFFSET $3`,
			query.Category, limit, offset,
		)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+carColumns+` FROM cars
			 ORDER BY created_at DESC, id
			 LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cars: %w", err)
	}
	defer rows.Close()

	cars := make([]*model.Car, 0, limit)
	for rows.Next() {
		car, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car row: %w", err)
		}
		cars = append(cars, car)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate car rows: %w", err)
	}

	return &model.CarPage{
		Cars:  cars,
		Page:  page,
		Pages: pages,
		Total: total,
	}, nil
}

// Create は車両を作成する。
func (r *PostgresCarRepo) Create(ctx context.Context, car *model.Car) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cars (id, make, model, year, price, color, category, seats,
		 transmission, fuel_type, engine, horsepower, description, images, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		car.ID, car.Make, car.Model, car.Year, car.Price, car.Color, car.Category, car.Seats,
		car.Transmission, car.FuelType, car.Engine, car.Horsepower, car.Description,
		pq.Array(car.Images), car.CreatedAt, car.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}
	return nil
}

// Update は車両情報を全項目更新する。対象が存在しない場合はfalseを返す。
func (r *PostgresCarRepo) Update(ctx context.Context, car *model.Car) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cars SET make = $2, model = $3, year = $4, price = $5, color = $6,
		 category = $7, seats = $8, transmission = $9, fuel_type = $10, engine = $11,
		 horsepower = $12, description = $13, images = $14, updated_at = $15
		 WHERE id = $1`,
		car.ID, car.Make, car.Model, car.Year, car.Price, car.Color,
		car.Category, car.Seats, car.Transmission, car.FuelType, car.Engine,
		car.Horsepower, car.Description, pq.Array(car.Images), car.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update car: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteByID は指定IDの車両を削除する。対象が存在しない場合はfalseを返す。
func (r *PostgresCarRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cars WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete car: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの両方を受け付けるScanの抽象。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanCar は1行を*model.Carに読み取る。
func scanCar(row rowScanner) (*model.Car, error) {
	car := &model.Car{}
	var images pq.StringArray
	err := row.Scan(
		&car.ID, &car.Make, &car.Model, &car.Year, &car.Price, &car.Color,
		&car.Category, &car.Seats, &car.Transmission, &car.FuelType, &car.Engine,
		&car.Horsepower, &car.Description, &images, &car.CreatedAt, &car.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	car.Images = []string(images)
	return car, nil
}

// compile-time interface check
var _ CarRepository = (*PostgresCarRepo)(nil)
