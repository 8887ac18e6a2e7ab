package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DemoUserID はX-User-IDヘッダーがない場合とデモモードで使われるユーザーID。
const DemoUserID = "demo-user"
