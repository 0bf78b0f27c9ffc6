// Package sign содержит функции подписи запросов к приватным API бирж.
//
// Все функции чистые и детерминированные: одинаковый вход всегда даёт
// одинаковую подпись. Это позволяет проверять их против официальных
// примеров из документации бирж.
//
// Схемы подписи:
//   - Binance:  HMAC-SHA256(secret, query) -> hex
//   - Kraken:   HMAC-SHA512(base64decode(secret), path + SHA256(nonce+body)) -> base64
//   - Coinbase: HMAC-SHA256(secret, timestamp+method+path+body) -> hex
//   - OKX:      HMAC-SHA256(secret, timestamp+method+path+body) -> base64
//   - Bybit:    HMAC-SHA256(secret, timestamp+apiKey+recvWindow+query) -> hex
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Binance подписывает query string для Binance API.
// Подпись - HMAC-SHA256 от query string, hex в нижнем регистре.
// Параметр signature добавляется к запросу последним.
func Binance(secret, query string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// BinanceQuery собирает query string из параметров в детерминированном
// порядке (отсортированные ключи) для подписи.
func BinanceQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[k]))
	}
	return sb.String()
}

// Kraken подписывает запрос к приватному Kraken API.
//
// Алгоритм: HMAC-SHA512(base64decode(secret), path || SHA256(nonce || body)),
// результат кодируется в base64. Секрет Kraken выдаёт уже в base64.
func Kraken(secret, path, nonce, body string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("invalid kraken secret: %w", err)
	}

	sha := sha256.New()
	sha.Write([]byte(nonce + body))

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(path))
	mac.Write(sha.Sum(nil))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Coinbase подписывает запрос к Coinbase API.
// Сообщение: timestamp + method + path + body, подпись hex.
// timestamp - unix секунды, method - верхний регистр.
func Coinbase(secret, timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(h.Sum(nil))
}

// OKX подписывает запрос к OKX API v5.
// Сообщение идентично Coinbase (timestamp+method+path+body), но timestamp
// в формате ISO-8601 с миллисекундами, а подпись кодируется в base64.
func OKX(secret, timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Bybit подписывает запрос к Bybit API v5.
// Сообщение: timestamp + apiKey + recvWindow + query (для GET) или
// timestamp + apiKey + recvWindow + jsonBody (для POST), подпись hex.
func Bybit(secret, timestamp, apiKey, recvWindow, payload string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + apiKey + recvWindow + payload))
	return hex.EncodeToString(h.Sum(nil))
}
