package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/util/atomicwrite"
)

// fileStore guarda un YAML por dominio bajo un directorio raíz.
// Serializa todo acceso con un mutex: el volumen de signers hosteados por
// proceso es chico y la simplicidad gana.
type fileStore struct {
	dir string
	mu  sync.Mutex
}

// signerDoc es la forma en disco de un signer hosteado.
type signerDoc struct {
	Version  byte         `yaml:"version"`
	Domain   string       `yaml:"domain"`
	Name     string       `yaml:"name"`
	Email    string       `yaml:"email"`
	TermsURL string       `yaml:"termsURL"`
	Keys     []keyPairDoc `yaml:"keys"`
}

type keyPairDoc struct {
	ID               string    `yaml:"id"`
	PublicPEM        string    `yaml:"publicPem"`
	PrivatePEM       string    `yaml:"privatePem"`
	PrivateEncrypted bool      `yaml:"privateEncrypted"`
	Created          time.Time `yaml:"created"`
}

// NewFile crea el store de archivos sobre dir (default "data/signers").
func NewFile(dir string) (Store, error) {
	if dir == "" {
		dir = filepath.Join("data", "signers")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	return &fileStore{dir: dir}, nil
}

func (f *fileStore) path(domain string) string {
	return filepath.Join(f.dir, domain+".yaml")
}

func (f *fileStore) read(domain string) (*signerDoc, error) {
	b, err := os.ReadFile(f.path(domain))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var doc signerDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", f.path(domain), err)
	}
	return &doc, nil
}

func (f *fileStore) write(doc *signerDoc) error {
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	// 0600: el archivo lleva claves privadas (aunque estén cifradas).
	return atomicwrite.AtomicWriteFile(f.path(doc.Domain), b, 0o600)
}

func (f *fileStore) Get(ctx context.Context, domain string) (*owid.Signer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read(domain)
	if err != nil {
		return nil, err
	}
	return docToSigner(doc)
}

func (f *fileStore) Put(ctx context.Context, s *owid.Signer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.read(s.Domain); err == nil {
		return ErrAlreadyExists
	} else if err != ErrNotFound {
		return err
	}
	doc, err := signerToDoc(s)
	if err != nil {
		return err
	}
	return f.write(doc)
}

func (f *fileStore) AddKeys(ctx context.Context, domain string, pub, priv *owid.Key) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read(domain)
	if err != nil {
		return err
	}
	pair, err := newKeyPairDoc(pub, priv)
	if err != nil {
		return err
	}
	doc.Keys = append(doc.Keys, pair)
	return f.write(doc)
}

func (f *fileStore) List(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var domains []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		domains = append(domains, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(domains)
	return domains, nil
}

func (f *fileStore) Close() error {
	return nil
}

// ── Conversión doc <-> dominio ─────────────────────────────────────────

func docToSigner(doc *signerDoc) (*owid.Signer, error) {
	s := &owid.Signer{
		Version:  doc.Version,
		Domain:   doc.Domain,
		Name:     doc.Name,
		Email:    doc.Email,
		TermsURL: doc.TermsURL,
	}
	for _, k := range doc.Keys {
		s.PublicKeys = append(s.PublicKeys, owid.NewKey(k.PublicPEM, k.Created))
		if k.PrivatePEM != "" {
			pem, err := decryptPEM(k.PrivatePEM, k.PrivateEncrypted)
			if err != nil {
				return nil, fmt.Errorf("store: decrypt key for %s: %w", doc.Domain, err)
			}
			s.PrivateKeys = append(s.PrivateKeys, owid.NewKey(pem, k.Created))
		}
	}
	return s, nil
}

func signerToDoc(s *owid.Signer) (*signerDoc, error) {
	doc := &signerDoc{
		Version:  s.Version,
		Domain:   s.Domain,
		Name:     s.Name,
		Email:    s.Email,
		TermsURL: s.TermsURL,
	}
	// El historial persiste como pares: pública[i] <-> privada[i].
	for i, pub := range s.PublicKeys {
		var priv *owid.Key
		if i < len(s.PrivateKeys) {
			priv = s.PrivateKeys[i]
		}
		pair, err := newKeyPairDoc(pub, priv)
		if err != nil {
			return nil, err
		}
		doc.Keys = append(doc.Keys, pair)
	}
	return doc, nil
}

func newKeyPairDoc(pub, priv *owid.Key) (keyPairDoc, error) {
	pair := keyPairDoc{
		ID:        newKeyID(),
		PublicPEM: pub.PEM,
		Created:   pub.Created,
	}
	if priv != nil {
		value, encrypted, err := encryptPEM(priv.PEM)
		if err != nil {
			return keyPairDoc{}, err
		}
		pair.PrivatePEM = value
		pair.PrivateEncrypted = encrypted
	}
	return pair, nil
}
