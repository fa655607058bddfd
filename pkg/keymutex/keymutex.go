// Package keymutex предоставляет мьютекс с блокировкой по строковому ключу.
// Операции с разными ключами не блокируют друг друга; операции с одним ключом
// выполняются строго последовательно.
package keymutex

import "sync"

// KeyMutex — набор именованных мьютексов с подсчетом ссылок.
// Запись для ключа удаляется, как только последний владелец освобождает блокировку,
// поэтому память не растет с количеством когда-либо встреченных ключей.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New создает пустой KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{
		locks: make(map[string]*entry),
	}
}

// Lock захватывает эксклюзивную секцию для ключа.
func (k *KeyMutex) Lock(key string) {
	k.mu.Lock()
	en, ok := k.locks[key]
	if !ok {
		en = &entry{}
		k.locks[key] = en
	}
	en.refs++
	k.mu.Unlock()

	en.mu.Lock()
}

// Unlock освобождает эксклюзивную секцию для ключа.
// Вызов без предшествующего Lock для того же ключа — ошибка программирования.
func (k *KeyMutex) Unlock(key string) {
	k.mu.Lock()
	en, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("keymutex: unlock of unlocked key " + key)
	}
	en.refs--
	if en.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	en.mu.Unlock()
}
