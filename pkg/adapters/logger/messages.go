package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Coordination
		"Starting export run %s":                                "エクスポート実行 %s を開始します",
		"Export run %s completed: %d frames, %d bytes in %dms":  "エクスポート実行 %s が完了しました: %d フレーム, %d バイト, %dms",
		"Artifact saved to %s (%d bytes)":                       "成果物を %s に保存しました (%d バイト)",

		// Capture
		"Frame %d at %.1fms failed after %d attempts: %s":           "フレーム %d (%.1fms) が %d 回の試行後に失敗しました: %s",
		"Skipped %d of %d sample instants after exhausted retries":  "リトライ上限により %d / %d のサンプル時点をスキップしました",

		// Encoding
		"Encoder configured: %s/%s %dx%d @ %d fps":           "エンコーダー設定完了: %s/%s %dx%d @ %d fps",
		"Container sealed: %d frames, %d chunks, %d bytes":   "コンテナ確定: %d フレーム, %d チャンク, %d バイト",

		// Memory
		"Memory headroom exceeded during assembly (%d bytes pending); continuing degraded": "アセンブリ中にメモリ余裕度を超過しました (%d バイト保留中)。劣化モードで続行します",

		// Surface
		"Launching browser surface": "ブラウザサーフェースを起動中",
		"Browser surface closed":    "ブラウザサーフェースを閉じました",
	})
}
