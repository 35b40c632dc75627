package store

import (
	"context"
	"errors"
)

var ErrDocumentNotFound = errors.New("document not found")

// TxFunc 在交易內對文件做 read-modify-write。
// current 為 nil 表示文件不存在；回傳 nil 表示刪除文件；
// 回傳 error 則中止交易，文件保持不變。
type TxFunc func(current []byte) ([]byte, error)

type DocumentStore interface {
	// Get 讀取單一文件；不存在時回傳 ErrDocumentNotFound
	Get(ctx context.Context, path string) ([]byte, error)
	// Set 非交易式寫入：只用於 append-only 的新紀錄（如購買紀錄）
	Set(ctx context.Context, path string, value []byte) error
	// RunTransaction 以樂觀併發執行 fn：寫回時若文件已被其他交易改動則重試。
	// fn 回傳的 error 原樣傳回，文件不會有任何變動。
	RunTransaction(ctx context.Context, path string, fn TxFunc) ([]byte, error)
}
