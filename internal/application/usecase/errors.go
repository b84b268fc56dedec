package usecase

import "errors"

var (
	// ErrBatchTooLarge пакет превышает допустимый размер; проверка выполняется до разбора
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrEmptyBatch пакет не содержит показаний
	ErrEmptyBatch = errors.New("batch is empty")

	// ErrStorageNotConfigured хранилище выгрузок не настроено
	ErrStorageNotConfigured = errors.New("export storage is not configured")

	// ErrCursorRequiresIndex курсорная пагинация доступна только через индекс метаданных
	ErrCursorRequiresIndex = errors.New("cursor pagination requires export metadata index")
)
