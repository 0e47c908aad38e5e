package owid_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"testing"
	"time"

	"github.com/SWAN-community/owid/internal/codec"
	"github.com/SWAN-community/owid/internal/owid"
	"github.com/SWAN-community/owid/internal/resolve"
	"github.com/SWAN-community/owid/internal/security/ecdsa256"
)

const testDomain = "example.test"

// newSigned arma el escenario base: target "example test", dominio
// example.test, firmado con un keypair fresco.
func newSigned(t *testing.T) (*owid.OWID, *ecdsa.PrivateKey, *ecdsa.PublicKey) {
	t.Helper()
	priv, pub, err := ecdsa256.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	o := owid.New(&owid.StringTarget{Value: "example test"})
	o.Domain = testDomain
	if err := o.SignWithKey(priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return o, priv, pub
}

func pubKey(t *testing.T, pub *ecdsa.PublicKey, created time.Time) *owid.Key {
	t.Helper()
	pem, err := ecdsa256.ExportPublicPEM(pub)
	if err != nil {
		t.Fatalf("export public: %v", err)
	}
	return owid.NewKey(pem, created)
}

func privKey(t *testing.T, priv *ecdsa.PrivateKey, created time.Time) *owid.Key {
	t.Helper()
	pem, err := ecdsa256.ExportPrivatePEM(priv)
	if err != nil {
		t.Fatalf("export private: %v", err)
	}
	return owid.NewKey(pem, created)
}

func TestLifecycle_NewIsNotStarted(t *testing.T) {
	o := owid.New(&owid.StringTarget{Value: "x"})
	if o.Status() != owid.StatusNotStarted {
		t.Fatalf("new owid should be NotStarted, got %v", o.Status())
	}
	if o.IsSigned() {
		t.Fatalf("new owid should not be signed")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	o, _, pub := newSigned(t)
	if !o.IsSigned() {
		t.Fatalf("post-condition IsSigned failed")
	}
	status, err := o.VerifyWithKey(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusValid {
		t.Fatalf("expected Valid, got %v", status)
	}
	if o.Signer() != nil {
		t.Fatalf("VerifyWithKey must leave recorded signer undefined")
	}
}

func TestDomainTampering(t *testing.T) {
	o, _, pub := newSigned(t)
	o.Domain = "evil.test"
	status, err := o.VerifyWithKey(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusNotValid {
		t.Fatalf("expected NotValid after domain mutation, got %v", status)
	}
}

func TestTimestampTampering(t *testing.T) {
	o, _, pub := newSigned(t)
	o.Timestamp++
	status, err := o.VerifyWithKey(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusNotValid {
		t.Fatalf("expected NotValid after timestamp mutation, got %v", status)
	}
}

func TestPayloadTampering(t *testing.T) {
	priv, pub, _ := ecdsa256.Generate()
	target := &owid.StringTarget{Value: "original"}
	o := owid.New(target)
	o.Domain = testDomain
	if err := o.SignWithKey(priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	target.Value = "mutated"
	status, err := o.VerifyWithKey(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusNotValid {
		t.Fatalf("expected NotValid after payload mutation, got %v", status)
	}
}

func TestWrongCapabilityKey(t *testing.T) {
	o, priv, _ := newSigned(t)
	status, err := o.VerifyWithKey(priv)
	if !errors.Is(err, ecdsa256.ErrKeyMisuse) {
		t.Fatalf("expected ErrKeyMisuse, got %v", err)
	}
	if status != owid.StatusException || o.Status() != owid.StatusException {
		t.Fatalf("status should be Exception, got %v", o.Status())
	}
}

func TestSignatureCorruption(t *testing.T) {
	o, _, pub := newSigned(t)
	o.Signature[10] ^= 0xFF
	status, err := o.VerifyWithKey(pub)
	if err != nil {
		t.Fatalf("corrupted signature must not raise: %v", err)
	}
	if status != owid.StatusNotValid {
		t.Fatalf("expected NotValid, got %v", status)
	}
}

func TestSignWithoutTargetOrDomain(t *testing.T) {
	priv, _, _ := ecdsa256.Generate()

	o := owid.New(nil)
	o.Domain = testDomain
	if err := o.SignWithKey(priv); !errors.Is(err, owid.ErrNoTarget) {
		t.Fatalf("expected ErrNoTarget, got %v", err)
	}

	o = owid.New(&owid.StringTarget{Value: "x"})
	if err := o.SignWithKey(priv); !errors.Is(err, owid.ErrNoDomain) {
		t.Fatalf("expected ErrNoDomain, got %v", err)
	}
}

// ── Selección de claves por tiempo ─────────────────────────────────────

func TestKeySelection_FirstEligibleWins(t *testing.T) {
	o, _, pub := newSigned(t)
	_, otherPub, _ := ecdsa256.Generate()

	ts := o.Date()
	keys := []*owid.Key{
		pubKey(t, pub, ts.Add(-time.Millisecond)),     // buena, elegible
		pubKey(t, otherPub, ts.Add(time.Millisecond)), // ajena, elegible
		pubKey(t, pub, ts.Add(2*time.Millisecond)),    // buena, elegible
	}
	status, err := o.VerifyWithPublicKeys(keys)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusValid {
		t.Fatalf("first eligible key should verify, got %v", status)
	}
}

func TestKeySelection_NoFallThrough(t *testing.T) {
	o, _, pub := newSigned(t)
	_, otherPub, _ := ecdsa256.Generate()

	ts := o.Date()
	// La primera elegible es la ajena: el algoritmo NO debe caer a la buena.
	keys := []*owid.Key{
		pubKey(t, otherPub, ts.Add(-time.Minute)),
		pubKey(t, pub, ts.Add(-time.Minute)),
	}
	status, err := o.VerifyWithPublicKeys(keys)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusNotValid {
		t.Fatalf("selection must not fall through to later keys, got %v", status)
	}
}

func TestKeySelection_FutureKeySkipped(t *testing.T) {
	// Única clave creada 2h después del timestamp: la tolerancia de 1h no
	// alcanza, ninguna candidata califica.
	o, _, pub := newSigned(t)
	keys := []*owid.Key{pubKey(t, pub, o.Date().Add(2*time.Hour))}
	status, err := o.VerifyWithPublicKeys(keys)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusKeyNotFound || o.Status() != owid.StatusKeyNotFound {
		t.Fatalf("expected KeyNotFound, got %v", status)
	}
}

func TestKeySelection_WithinTolerance(t *testing.T) {
	// Clave creada 30 min después del timestamp: la tolerancia de 1h la
	// hace elegible.
	o, _, pub := newSigned(t)
	keys := []*owid.Key{pubKey(t, pub, o.Date().Add(30*time.Minute))}
	status, err := o.VerifyWithPublicKeys(keys)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusValid {
		t.Fatalf("key within tolerance should be eligible, got %v", status)
	}
}

// ── Signer y service ───────────────────────────────────────────────────

func testSigner(t *testing.T, domain string, pub *ecdsa.PublicKey, created time.Time) *owid.Signer {
	t.Helper()
	return &owid.Signer{
		Version:    owid.Version1,
		Domain:     domain,
		Name:       "Example Org",
		Email:      "ops@example.test",
		TermsURL:   "https://example.test/terms",
		PublicKeys: []*owid.Key{pubKey(t, pub, created)},
	}
}

func TestVerifyWithSigner_RecordsSigner(t *testing.T) {
	o, _, pub := newSigned(t)
	s := testSigner(t, testDomain, pub, o.Date().Add(-time.Minute))

	status, err := o.VerifyWithSigner(s)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusValid {
		t.Fatalf("expected Valid, got %v", status)
	}
	if o.Signer() != s {
		t.Fatalf("signer should be recorded on clean outcome")
	}
}

func TestVerifyWithSigner_DomainMismatch(t *testing.T) {
	o, _, pub := newSigned(t)
	s := testSigner(t, "other.test", pub, o.Date().Add(-time.Minute))

	_, err := o.VerifyWithSigner(s)
	var mismatch *owid.DomainMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected DomainMismatchError, got %v", err)
	}
	if o.Status() != owid.StatusException {
		t.Fatalf("status should be Exception, got %v", o.Status())
	}
	if o.Signer() != nil {
		t.Fatalf("recorded signer should be cleared on exception")
	}
}

func TestVerifyWithService_CacheHit(t *testing.T) {
	o, _, pub := newSigned(t)
	cache := resolve.NewMemory(0)
	cache.Add(testSigner(t, testDomain, pub, o.Date().Add(-time.Minute)))

	status, err := o.VerifyWithService(context.Background(), cache)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusValid {
		t.Fatalf("expected Valid, got %v", status)
	}
	if o.Signer() == nil {
		t.Fatalf("signer should be recorded when verified via service")
	}
}

func TestVerifyWithService_CacheMiss(t *testing.T) {
	o, _, pub := newSigned(t)
	cache := resolve.NewMemory(0)
	cache.Add(testSigner(t, "not.found", pub, o.Date().Add(-time.Minute)))

	status, err := o.VerifyWithService(context.Background(), cache)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if status != owid.StatusSignerNotFound || o.Status() != owid.StatusSignerNotFound {
		t.Fatalf("expected SignerNotFound, got %v", status)
	}
	if o.Signer() != nil {
		t.Fatalf("recorded signer should be undefined on miss")
	}
}

// ── Serialización ──────────────────────────────────────────────────────

func TestWireRoundTrip(t *testing.T) {
	o, _, pub := newSigned(t)
	wire, err := o.AsByteArray()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got, err := owid.FromByteArray(&owid.StringTarget{Value: "example test"}, wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Version != o.Version || got.Domain != o.Domain || got.Timestamp != o.Timestamp {
		t.Fatalf("field mismatch after round trip")
	}
	if got.SignatureBase64() != o.SignatureBase64() {
		t.Fatalf("signature mismatch after round trip")
	}

	// El decodificado verifica igual que el original.
	status, err := got.VerifyWithKey(pub)
	if err != nil || status != owid.StatusValid {
		t.Fatalf("decoded owid should verify: status=%v err=%v", status, err)
	}
}

func TestUnsupportedVersion(t *testing.T) {
	o, _, _ := newSigned(t)
	wire, err := o.AsByteArray()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	wire[0] = 2
	_, err = owid.FromByteArray(&owid.StringTarget{Value: "example test"}, wire)
	var unsupported *owid.UnsupportedVersionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedVersionError, got %v", err)
	}
	if unsupported.Version != 2 {
		t.Fatalf("error should carry the offending version, got %d", unsupported.Version)
	}
}

func TestAsByteArray_Unsigned(t *testing.T) {
	o := owid.New(&owid.StringTarget{Value: "x"})
	o.Version = owid.Version1
	o.Domain = testDomain
	if _, err := o.AsByteArray(); !errors.Is(err, codec.ErrBadSignatureLength) {
		t.Fatalf("unsigned owid must not serialize, got %v", err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	o, _, pub := newSigned(t)
	data, err := o.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := owid.New(&owid.StringTarget{Value: "example test"})
	if err := got.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	status, err := got.VerifyWithKey(pub)
	if err != nil || status != owid.StatusValid {
		t.Fatalf("json round trip should verify: status=%v err=%v", status, err)
	}
}

// ── Firma con signer ───────────────────────────────────────────────────

func TestSignWithSigner_NewestKeyAndDomain(t *testing.T) {
	oldPriv, _, _ := ecdsa256.Generate()
	newPriv, newPub, _ := ecdsa256.Generate()

	now := time.Now().UTC()
	s := &owid.Signer{
		Version: owid.Version1,
		Domain:  testDomain,
		PrivateKeys: []*owid.Key{
			privKey(t, oldPriv, now.Add(-48*time.Hour)),
			privKey(t, newPriv, now.Add(-time.Hour)),
		},
	}

	o := owid.New(&owid.StringTarget{Value: "payload"})
	if err := o.SignWithSigner(s); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if o.Domain != testDomain {
		t.Fatalf("SignWithSigner should set the signer domain")
	}
	if o.Signer() != s {
		t.Fatalf("SignWithSigner should record the signer")
	}

	// Debe haber firmado con la clave más nueva.
	status, err := o.VerifyWithKey(newPub)
	if err != nil || status != owid.StatusValid {
		t.Fatalf("expected signature by newest key: status=%v err=%v", status, err)
	}
}

func TestSignWithSigner_NoPrivateKeys(t *testing.T) {
	s := &owid.Signer{Version: owid.Version1, Domain: testDomain}
	o := owid.New(&owid.StringTarget{Value: "payload"})
	if err := o.SignWithSigner(s); !errors.Is(err, owid.ErrNoPrivateKey) {
		t.Fatalf("expected ErrNoPrivateKey, got %v", err)
	}
}

func TestNewestPrivateKey_TieFirstWins(t *testing.T) {
	aPriv, _, _ := ecdsa256.Generate()
	bPriv, _, _ := ecdsa256.Generate()
	created := time.Now().UTC()
	a := privKey(t, aPriv, created)
	b := privKey(t, bPriv, created)
	s := &owid.Signer{Domain: testDomain, PrivateKeys: []*owid.Key{a, b}}

	got, err := s.NewestPrivateKey()
	if err != nil {
		t.Fatalf("newest: %v", err)
	}
	if got != a {
		t.Fatalf("tie should resolve to the first key in list order")
	}
}
