// vidstore-client — CLI для загрузки видео на vidstore.
//
// Команды:
//   - generate-key — создание пары ключей Ed25519 в PEM-файлах
//   - upload-key, remove-key, list-keys — управление whitelist (админ-ключ)
//   - upload-video — chunk-загрузка видеофайла
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bigkaa/vidstore/internal/auth"
	"github.com/bigkaa/vidstore/internal/client"
	"github.com/bigkaa/vidstore/internal/config"
)

// Глобальные флаги подключения.
var (
	serverURL string
	keyID     string
	keyFile   string
	caCert    string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:     "vidstore-client",
	Short:   "Клиент загрузки видео на vidstore с подписью запросов Ed25519",
	Version: config.Version,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "адрес сервера vidstore")
	rootCmd.PersistentFlags().StringVar(&keyID, "key-id", "", "идентификатор ключа в whitelist")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key-file", "", "путь к приватному ключу (PEM, PKCS#8)")
	rootCmd.PersistentFlags().StringVar(&caCert, "ca-cert", "", "путь к CA-сертификату сервера (опционально)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "уровень логирования (debug, info, warn, error)")

	rootCmd.AddCommand(
		getGenerateKeyCmd(),
		getUploadKeyCmd(),
		getRemoveKeyCmd(),
		getListKeysCmd(),
		getUploadVideoCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

// newLogger создаёт текстовый логгер CLI на stderr.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(logLevel))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClient создаёт подписывающий клиент из глобальных флагов.
func newClient() (*client.Client, error) {
	if keyID == "" {
		return nil, fmt.Errorf("флаг --key-id обязателен")
	}
	if keyFile == "" {
		return nil, fmt.Errorf("флаг --key-file обязателен")
	}

	pemData, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("чтение приватного ключа: %w", err)
	}
	priv, err := auth.ParsePrivateKeyPEM(string(pemData))
	if err != nil {
		return nil, fmt.Errorf("разбор приватного ключа: %w", err)
	}

	return client.New(serverURL, keyID, priv, caCert, newLogger())
}

func getGenerateKeyCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate-key",
		Short: "Создать пару ключей Ed25519 и сохранить в PEM-файлы",
		RunE: func(cmd *cobra.Command, args []string) error {
			if keyID == "" {
				return fmt.Errorf("флаг --key-id обязателен")
			}

			pub, priv, err := auth.GenerateKeyPair()
			if err != nil {
				return err
			}

			privPEM, err := auth.MarshalPrivateKeyPEM(priv)
			if err != nil {
				return err
			}
			pubPEM, err := auth.MarshalPublicKeyPEM(pub)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o700); err != nil {
				return fmt.Errorf("создание директории: %w", err)
			}

			privPath := filepath.Join(outDir, keyID+".pem")
			pubPath := filepath.Join(outDir, keyID+".pub.pem")

			// Приватный ключ — только для владельца
			if err := os.WriteFile(privPath, []byte(privPEM), 0o600); err != nil {
				return fmt.Errorf("запись приватного ключа: %w", err)
			}
			if err := os.WriteFile(pubPath, []byte(pubPEM), 0o644); err != nil {
				return fmt.Errorf("запись публичного ключа: %w", err)
			}

			fmt.Printf("Приватный ключ: %s\nПубличный ключ: %s\n", privPath, pubPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", ".", "директория для PEM-файлов")
	return cmd
}

func getUploadKeyCmd() *cobra.Command {
	var (
		newKeyID      string
		publicKeyFile string
		isAdmin       bool
		domain        string
	)

	cmd := &cobra.Command{
		Use:   "upload-key",
		Short: "Добавить публичный ключ в whitelist (требуется админ-ключ)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			pemData, err := os.ReadFile(publicKeyFile)
			if err != nil {
				return fmt.Errorf("чтение публичного ключа: %w", err)
			}

			if err := c.WhitelistAdd(context.Background(), newKeyID, string(pemData), isAdmin, domain); err != nil {
				return err
			}

			fmt.Printf("Ключ %s добавлен в whitelist\n", newKeyID)
			return nil
		},
	}

	cmd.Flags().StringVar(&newKeyID, "new-key-id", "", "идентификатор добавляемого ключа")
	cmd.Flags().StringVar(&publicKeyFile, "public-key-file", "", "путь к публичному ключу (PEM)")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "выдать ключу права администратора")
	cmd.Flags().StringVar(&domain, "domain", "", "домен владельца ключа")
	_ = cmd.MarkFlagRequired("new-key-id")
	_ = cmd.MarkFlagRequired("public-key-file")
	return cmd
}

func getRemoveKeyCmd() *cobra.Command {
	var targetKeyID string

	cmd := &cobra.Command{
		Use:   "remove-key",
		Short: "Удалить ключ из whitelist (требуется админ-ключ)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			if err := c.WhitelistRemove(context.Background(), targetKeyID); err != nil {
				return err
			}

			fmt.Printf("Ключ %s удалён из whitelist\n", targetKeyID)
			return nil
		},
	}

	cmd.Flags().StringVar(&targetKeyID, "target-key-id", "", "идентификатор удаляемого ключа")
	_ = cmd.MarkFlagRequired("target-key-id")
	return cmd
}

func getListKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-keys",
		Short: "Показать ключи whitelist (требуется админ-ключ)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			keys, err := c.WhitelistList(context.Background())
			if err != nil {
				return err
			}

			for id, meta := range keys {
				role := "user"
				if meta.IsAdmin {
					role = "admin"
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", id, role, meta.Domain, meta.CreatedAt)
			}
			return nil
		},
	}
}

func getUploadVideoCmd() *cobra.Command {
	var (
		filePath  string
		chunkSize int64
	)

	cmd := &cobra.Command{
		Use:   "upload-video",
		Short: "Загрузить видеофайл по частям",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			link, err := c.UploadFile(context.Background(), filePath, chunkSize)
			if err != nil {
				return err
			}

			fmt.Println(link)
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "путь к видеофайлу")
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", client.DefaultChunkSize, "размер части в байтах")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
