package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/hitoshi/carman/internal/adminclient"
	"github.com/hitoshi/carman/internal/inventory"
	"github.com/hitoshi/carman/internal/logger"
	"github.com/hitoshi/carman/internal/session"
	"github.com/hitoshi/carman/internal/view"
)

// adminPageSize は管理CLIの一覧取得で使う1ページ件数。
const adminPageSize = 12

// runAdmin は管理クライアントモードで起動する。
// APIサーバーにログインし、サブコマンドに応じた在庫操作を実行する。
// 認証情報は ADMIN_EMAIL / ADMIN_PASSWORD 環境変数から読み込む。
//
// サブコマンド:
//
//	admin profile            - ログイン中の管理者情報を表示する
//	admin list [page] [cat]  - 車両一覧をJSONで表示する
//	admin delete <id>        - 車両を削除する
func runAdmin(w io.Writer, args []string) error {
	// ログはstderrに出し、stdoutはコマンドの出力専用にする
	logger.SetupDefault(os.Stderr)

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required")
	}

	client, err := adminclient.NewClient(baseURL)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}

	store := session.NewStore()
	sess := session.NewController(store, client, slog.Default())
	guard, unsubscribe := view.NewGuard(store, sess)
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// まず既存セッションの復元を試み、未ログインならログインする
	guard.EnsureRestored(ctx)
	if guard.Current() != view.ViewDashboard {
		if _, err := sess.Login(ctx, email, password); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}
	if v := guard.Current(); v != view.ViewDashboard {
		return fmt.Errorf("admin role required")
	}

	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "profile":
		return printProfile(w, store)
	case "list":
		return printInventory(ctx, w, client, args[1:])
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin delete <id>")
		}
		return deleteCar(ctx, w, client, args[1])
	default:
		return fmt.Errorf("unknown admin subcommand: %s", sub)
	}
}

// printProfile はログイン中の管理者情報をJSONで出力する。
func printProfile(w io.Writer, store *session.Store) error {
	state := store.Snapshot()
	if state.Identity == nil {
		return fmt.Errorf("not logged in")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(state.Identity)
}

// printInventory は車両一覧を取得してJSONで出力する。
// 引数はページ番号とカテゴリ（省略可）。
func printInventory(ctx context.Context, w io.Writer, client *adminclient.Client, args []string) error {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid page number: %q", args[0])
		}
		page = n
	}

	notify := func(kind, title, message string) {
		slog.Info("notification",
			slog.String("kind", kind),
			slog.String("title", title),
			slog.String("message", message),
		)
	}
	inv := inventory.NewController(client, adminPageSize, notify)
	defer inv.Close()

	if len(args) > 1 {
		inv.SetCategoryFilter(ctx, args[1])
	} else {
		inv.Refresh(ctx)
	}
	if page != 1 {
		inv.RequestPage(ctx, page)
	}

	snap := inv.Snapshot()
	if snap.Status == inventory.StatusErrored {
		return fmt.Errorf("failed to fetch inventory: %s", snap.Error)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// deleteCar は指定IDの車両を削除する。
// CSRFトークンを事前に取得してから変更リクエストを送る。
func deleteCar(ctx context.Context, w io.Writer, client *adminclient.Client, id string) error {
	if err := client.EnsureCSRFToken(ctx); err != nil {
		return fmt.Errorf("failed to obtain CSRF token: %w", err)
	}

	if err := client.DeleteCar(ctx, id); err != nil {
		return fmt.Errorf("failed to delete car %s: %w", id, err)
	}

	fmt.Fprintf(w, "deleted %s\n", id)
	return nil
}
