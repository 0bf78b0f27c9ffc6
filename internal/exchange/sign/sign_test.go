package sign

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
)

// TestBinanceOfficialExample проверяет подпись против примера
// из официальной документации Binance API
func TestBinanceOfficialExample(t *testing.T) {
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	query := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"
	want := "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71"

	if got := Binance(secret, query); got != want {
		t.Errorf("Binance() = %s, want %s", got, want)
	}
}

// TestKrakenOfficialExample проверяет подпись против примера
// из официальной документации Kraken API
func TestKrakenOfficialExample(t *testing.T) {
	secret := "kQH5HW/8p1uGOVjbgWA7FunAmGO8lsSUXNsu3eow76sz84Q18fWxnyRzBHCd3pd5nE9qa99HAZtuZuj6F1huXg=="
	path := "/0/private/AddOrder"
	nonce := "1616492376594"
	body := "nonce=1616492376594&ordertype=limit&pair=XBTUSD&price=37500&type=buy&volume=1.25"
	want := "4/dpxb3iT4tp/ZCVEwSnEsLxx0bqyhLpdfOpc6fn7OR8+UClSV5n9E6aSS8MPtnRfp32bAb0nmbRn6H8ndwLUQ=="

	got, err := Kraken(secret, path, nonce, body)
	if err != nil {
		t.Fatalf("Kraken() failed: %v", err)
	}
	if got != want {
		t.Errorf("Kraken() = %s, want %s", got, want)
	}
}

// TestKrakenInvalidSecret проверяет ошибку при секрете не в base64
func TestKrakenInvalidSecret(t *testing.T) {
	if _, err := Kraken("not-valid-base64!!!", "/path", "1", "body"); err == nil {
		t.Error("Kraken() should fail with non-base64 secret")
	}
}

// TestBinanceQueryOrdering проверяет детерминированный порядок параметров
func TestBinanceQueryOrdering(t *testing.T) {
	params := map[string]string{
		"timestamp": "1499827319559",
		"symbol":    "LTCBTC",
		"side":      "BUY",
	}

	got := BinanceQuery(params)
	want := "side=BUY&symbol=LTCBTC&timestamp=1499827319559"
	if got != want {
		t.Errorf("BinanceQuery() = %s, want %s", got, want)
	}
}

// TestCoinbaseFormat проверяет формат и детерминированность подписи Coinbase
func TestCoinbaseFormat(t *testing.T) {
	sig := Coinbase("secret", "1635000000", "GET", "/accounts", "")

	// hex SHA256 = 64 символа нижнего регистра
	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if sig != strings.ToLower(sig) {
		t.Error("signature should be lowercase hex")
	}
	if _, err := hex.DecodeString(sig); err != nil {
		t.Errorf("signature is not valid hex: %v", err)
	}

	if sig2 := Coinbase("secret", "1635000000", "GET", "/accounts", ""); sig2 != sig {
		t.Error("signature must be deterministic")
	}
}

// TestCoinbaseSensitivity проверяет, что каждая часть сообщения влияет на подпись
func TestCoinbaseSensitivity(t *testing.T) {
	base := Coinbase("secret", "1635000000", "GET", "/accounts", "")

	variants := map[string]string{
		"secret":    Coinbase("other", "1635000000", "GET", "/accounts", ""),
		"timestamp": Coinbase("secret", "1635000001", "GET", "/accounts", ""),
		"method":    Coinbase("secret", "1635000000", "POST", "/accounts", ""),
		"path":      Coinbase("secret", "1635000000", "GET", "/orders", ""),
		"body":      Coinbase("secret", "1635000000", "GET", "/accounts", "{}"),
	}

	for part, sig := range variants {
		if sig == base {
			t.Errorf("changing %s did not change the signature", part)
		}
	}
}

// TestOKXFormat проверяет формат подписи OKX (base64 от SHA256)
func TestOKXFormat(t *testing.T) {
	sig := OKX("secret", "2021-10-23T12:00:00.000Z", "GET", "/api/v5/account/balance", "")

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("decoded signature length = %d, want 32 (SHA256)", len(raw))
	}
}

// TestOKXMatchesCoinbaseMessage проверяет, что OKX и Coinbase подписывают
// одно и то же сообщение, различаясь только кодировкой результата
func TestOKXMatchesCoinbaseMessage(t *testing.T) {
	secret, ts, method, path, body := "s3cret", "1635000000", "GET", "/x", "{}"

	okxSig := OKX(secret, ts, method, path, body)
	cbHex := Coinbase(secret, ts, method, path, body)

	cbRaw, _ := hex.DecodeString(cbHex)
	if base64.StdEncoding.EncodeToString(cbRaw) != okxSig {
		t.Error("OKX and Coinbase signatures should be the same MAC in different encodings")
	}
}

// TestBybitFormat проверяет формат и чувствительность подписи Bybit
func TestBybitFormat(t *testing.T) {
	sig := Bybit("secret", "1658385579423", "api-key", "5000", "accountType=UNIFIED")

	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64", len(sig))
	}
	if _, err := hex.DecodeString(sig); err != nil {
		t.Errorf("signature is not valid hex: %v", err)
	}

	// Подпись включает apiKey и recvWindow
	if Bybit("secret", "1658385579423", "other-key", "5000", "accountType=UNIFIED") == sig {
		t.Error("changing apiKey did not change the signature")
	}
	if Bybit("secret", "1658385579423", "api-key", "10000", "accountType=UNIFIED") == sig {
		t.Error("changing recvWindow did not change the signature")
	}
}
