package services

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DiskCache guarda en disco las respuestas GET exitosas. La clave incluye el día,
// así que la caché caduca sola a medianoche UTC.
type DiskCache struct {
	Dir  string
	Base http.RoundTripper
	now  func() time.Time
}

func (c *DiskCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.base().RoundTrip(req)
	}

	key := c.key(req)
	if resp, err := c.get(key, req); err == nil {
		return resp, nil
	}

	resp, err := c.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("proveedor externo",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
	)
	if resp.StatusCode >= 300 {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if msg, ok := apiError(body); ok {
		zap.L().Debug("respuesta de error del proveedor, no se cachea",
			zap.String("host", req.URL.Host),
			zap.String("message", msg))
		return resp, nil
	}

	if err := c.put(key, resp); err != nil {
		zap.L().Warn("no se pudo escribir la caché (ignorado)", zap.Error(err))
	}
	return resp, nil
}

// campos con los que EODHD y Alpha Vantage devuelven errores con status 200
var apiErrorPaths = []string{"$.error", `$["Error Message"]`, "$.Note", "$.Information"}

// apiError indica si el body no es JSON o trae un error del proveedor.
func apiError(body []byte) (string, bool) {
	var obj any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "invalid JSON", true
	}
	if _, ok := obj.(map[string]any); !ok {
		return "", false
	}
	for _, path := range apiErrorPaths {
		if msg, ok := jsonString(path, obj); ok {
			return msg, true
		}
	}
	return "", false
}

func (c *DiskCache) base() http.RoundTripper {
	if c.Base == nil {
		return http.DefaultTransport
	}
	return c.Base
}

func (c *DiskCache) key(req *http.Request) string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	raw := fmt.Sprintf("%s %s %s", now().UTC().Format("2006-01-02"), req.Method, req.URL.String())
	return fmt.Sprintf("%x", sha1.Sum([]byte(raw)))
}

func (c *DiskCache) get(key string, req *http.Request) (*http.Response, error) {
	content, err := os.ReadFile(filepath.Join(c.Dir, key))
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(content)), req)
}

// put vuelca la respuesta completa; DumpResponse deja el body listo para volver a leerse.
func (c *DiskCache) put(key string, resp *http.Response) error {
	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Dir, key), content, 0o644)
}

// NewProviderClient devuelve el cliente HTTP de los proveedores, con caché si dir no está vacío.
func NewProviderClient(dir string) *http.Client {
	client := &http.Client{Timeout: 30 * time.Second}
	if dir != "" {
		client.Transport = &DiskCache{Dir: dir, Base: http.DefaultTransport}
	}
	return client
}

// getJSON hace un GET y devuelve el body crudo junto con su decodificación genérica.
func getJSON(req *http.Request, client *http.Client) ([]byte, any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("cannot http GET %v%v: %v", req.URL.Host, req.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	var obj any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, nil, fmt.Errorf("decoding %v%v: %w", req.URL.Host, req.URL.Path, err)
	}
	return body, obj, nil
}
