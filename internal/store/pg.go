package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SWAN-community/owid/internal/owid"
)

// pgStore persiste signers en postgres (tablas signers + signer_keys).
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPG abre el pool y verifica la conexión.
func NewPG(ctx context.Context, dsn string) (Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("store: pgxpool: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &pgStore{pool: pool}, nil
}

// Pool expone el pool interno (metrics/migraciones).
func (p *pgStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *pgStore) Get(ctx context.Context, domain string) (*owid.Signer, error) {
	s := &owid.Signer{}
	err := p.pool.QueryRow(ctx,
		`SELECT version, domain, name, email, terms_url FROM signers WHERE domain = $1`,
		domain,
	).Scan(&s.Version, &s.Domain, &s.Name, &s.Email, &s.TermsURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := p.pool.Query(ctx,
		`SELECT public_pem, private_pem, private_encrypted, created
		   FROM signer_keys WHERE domain = $1 ORDER BY created ASC, id ASC`,
		domain,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			pubPEM, privPEM string
			encrypted       bool
			created         time.Time
		)
		if err := rows.Scan(&pubPEM, &privPEM, &encrypted, &created); err != nil {
			return nil, err
		}
		s.PublicKeys = append(s.PublicKeys, owid.NewKey(pubPEM, created))
		if privPEM != "" {
			pem, err := decryptPEM(privPEM, encrypted)
			if err != nil {
				return nil, fmt.Errorf("store: decrypt key for %s: %w", domain, err)
			}
			s.PrivateKeys = append(s.PrivateKeys, owid.NewKey(pem, created))
		}
	}
	return s, rows.Err()
}

func (p *pgStore) Put(ctx context.Context, s *owid.Signer) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO signers (version, domain, name, email, terms_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (domain) DO NOTHING`,
		s.Version, s.Domain, s.Name, s.Email, s.TermsURL,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}

	for i, pub := range s.PublicKeys {
		var priv *owid.Key
		if i < len(s.PrivateKeys) {
			priv = s.PrivateKeys[i]
		}
		if err := insertKeyPair(ctx, tx, s.Domain, pub, priv); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (p *pgStore) AddKeys(ctx context.Context, domain string, pub, priv *owid.Key) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM signers WHERE domain = $1)`, domain,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := insertKeyPair(ctx, tx, domain, pub, priv); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertKeyPair(ctx context.Context, tx pgx.Tx, domain string, pub, priv *owid.Key) error {
	var (
		privValue string
		encrypted bool
		err       error
	)
	if priv != nil {
		privValue, encrypted, err = encryptPEM(priv.PEM)
		if err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO signer_keys (id, domain, public_pem, private_pem, private_encrypted, created)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		newKeyID(), domain, pub.PEM, privValue, encrypted, pub.Created,
	)
	return err
}

func (p *pgStore) List(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT domain FROM signers ORDER BY domain`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (p *pgStore) Close() error {
	p.pool.Close()
	return nil
}
