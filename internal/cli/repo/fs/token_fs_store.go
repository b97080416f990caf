package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// TokenFSStore — файловое хранилище токена наблюдателя для CLI.
type TokenFSStore struct{}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	p := filepath.Join(dir, "SensorHub")
	if err := os.MkdirAll(p, 0o700); err != nil {
		return "", err
	}
	return p, nil
}

func tokenPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "observer_token"), nil
}

// Path возвращает путь к файлу токена.
func (TokenFSStore) Path() (string, error) {
	return tokenPath()
}

// Save сохраняет токен наблюдателя в файл.
func (TokenFSStore) Save(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	p, err := tokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(token), 0o600)
}

// Load читает токен наблюдателя из файла.
func (TokenFSStore) Load() (string, error) {
	p, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	// обрезаем завершающие переводы строки/пробелы
	token := strings.TrimRight(string(b), "\r\n\t ")
	if token == "" {
		return "", errors.New("empty token file")
	}
	return token, nil
}

// Clear удаляет сохранённый токен. Отсутствие файла не ошибка.
func (TokenFSStore) Clear() error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
