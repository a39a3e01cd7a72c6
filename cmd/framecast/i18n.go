// Package main provides localization for the framecast CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		"Export a rendered timeline as a video artifact": "レンダリングされたタイムラインを動画として書き出します",
		"Run an export against a timeline page or the built-in demo timeline": "タイムラインページまたは内蔵のデモタイムラインをエクスポート",
		"YAML configuration file":                       "YAML設定ファイル",
		"URL of the timeline page to export":            "エクスポートするタイムラインページのURL",
		"Export the built-in synthetic timeline instead of a page": "ページの代わりに内蔵の合成タイムラインをエクスポート",
		"Output file path":                              "出力ファイルパス",
		"Output video width":                            "出力動画の幅",
		"Output video height":                           "出力動画の高さ",
		"Target frame rate":                             "目標フレームレート",
		"Target bitrate in bits per second":             "目標ビットレート (bps)",
		"Quality preset: low, medium or high":           "品質プリセット: low, medium, high",
		"Container format: mp4 or webm":                 "コンテナ形式: mp4 または webm",
		"Timeline duration in milliseconds":             "タイムラインの長さ (ミリ秒)",
		"Hold the final frame for this many milliseconds": "最終フレームを指定ミリ秒だけ保持",
		"Path to the Chrome/Chromium executable":        "Chrome/Chromium実行ファイルのパス",
		"Log level: debug, info, warn, error or quiet":  "ログレベル: debug, info, warn, error, quiet",
		"Report codec and container support on this host": "このホストのコーデックとコンテナ対応を表示",
		"Show version information":                      "バージョン情報を表示",
		"framecast version %s":                          "framecast バージョン %s",
		"Export failed: %s":                             "エクスポートに失敗しました: %s",
		"Interrupted, shutting down...":                 "中断されました。シャットダウン中...",
	})
}
