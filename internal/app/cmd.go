package app

// Command はサブコマンド。
type Command string

const (
	// CommandServe はAPIサーバーを起動する（既定）。
	CommandServe Command = "serve"
	// CommandMigrate はPostgreSQL/SQLiteにスキーマを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩いて終了コードで結果を返す。
	// distrolessイメージにはcurlがないため、DockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand はos.Args[1:]の先頭からサブコマンドを決める。
// 空または未知の値はserveとして扱う。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
