package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки контракта векторной математики
	ErrDegenerateVector  = fmt.Errorf("degenerate vector: zero norm has no direction")
	ErrEmptyVectorSet    = fmt.Errorf("empty vector set")
	ErrDimensionMismatch = fmt.Errorf("embedding dimension mismatch")
	ErrEmptyEmbedding    = fmt.Errorf("embedding is empty")

	// Ошибки состояния кластеров
	ErrClusterNotFound    = fmt.Errorf("cluster not found")
	ErrImageNotFound      = fmt.Errorf("image not found")
	ErrDuplicateImage     = fmt.Errorf("image already present in state")
	ErrImageAlreadyMember = fmt.Errorf("image already assigned to a cluster")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrMissingUserID        = fmt.Errorf("user id is required")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")

	// 5xx
	ErrInternalServerError  = fmt.Errorf("internal server error")
	ErrMlServiceUnavailable = fmt.Errorf("ml service unavailable")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
