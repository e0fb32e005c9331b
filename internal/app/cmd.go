package app

import "fmt"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は定期リフレッシュのワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandRefresh はリフレッシュを1回だけ実行することを示す。
	CommandRefresh Command = "refresh"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandAdmin はユーザーの管理者フラグを変更することを示す。
	CommandAdmin Command = "admin"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandServe, CommandWorker, CommandRefresh, CommandMigrate, CommandAdmin, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}

// AdminArgs はadminサブコマンドの引数。
type AdminArgs struct {
	Email   string
	IsAdmin bool
}

// ParseAdminArgs は "admin grant|revoke <email>" の引数を解析する。
// argsにはサブコマンド名を含むos.Args[1:]を渡す。
func ParseAdminArgs(args []string) (AdminArgs, error) {
	if len(args) != 3 {
		return AdminArgs{}, fmt.Errorf("usage: admin grant|revoke <email>")
	}

	var isAdmin bool
	switch args[1] {
	case "grant":
		isAdmin = true
	case "revoke":
		isAdmin = false
	default:
		return AdminArgs{}, fmt.Errorf("unknown admin action %q (want grant or revoke)", args[1])
	}

	if args[2] == "" {
		return AdminArgs{}, fmt.Errorf("email must not be empty")
	}
	return AdminArgs{Email: args[2], IsAdmin: isAdmin}, nil
}
