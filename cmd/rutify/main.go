// 通知サーバーのエントリポイント。
// HTTPで受理した通知をSQLiteへ永続化し、WebSocketの購読者へ配信する。
package main

import (
	"log"

	"github.com/alone-wolf/rutify/internal/config"
	"github.com/alone-wolf/rutify/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}
	defer func() { _ = srv.Close() }()

	log.Printf("通知サーバーを起動します: %s (env=%s)", cfg.Addr, cfg.Env)
	if err := srv.Run(); err != nil {
		log.Fatalf("通知サーバーの起動に失敗: %v", err)
	}
}
