// Gatewayサービスのエントリポイント。
// Railsバックエンドでユーザートークンを検証する認証ゲートと、
// ゲーム情報の問い合わせAPIを提供する。
package main

import (
	"context"
	"log"

	"github.com/nao1215/rails/internal/gateway"
)

func main() {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := gateway.NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Gatewayサーバーの初期化に失敗: %v", err)
	}
	defer server.Close()

	log.Printf("Gatewayサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Gatewayサービスの起動に失敗: %v", err)
	}
}
