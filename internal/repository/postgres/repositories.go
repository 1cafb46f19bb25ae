package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users          *UserRepository
	Administrators *AdministratorRepository
	Sessions       *SessionRepository
	Transactor     *Transactor
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:          NewUserRepository(pool),
		Administrators: NewAdministratorRepository(pool),
		Sessions:       NewSessionRepository(pool),
		Transactor:     NewTransactor(pool),
	}
}
