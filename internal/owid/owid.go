// Package owid implementa el núcleo de Open Web Id: un identificador
// portable y auto-verificable que ata bytes arbitrarios de un target a un
// firmante (dominio DNS), un timestamp y una versión de formato.
//
// El mensaje firmado es la concatenación canónica, en este orden:
//
//	target.AddOwidData(w)   // framing propio del target
//	version (1 byte)
//	domain  (cstring)
//	timestamp (uint32 LE, minutos desde el epoch base)
//
// La firma NUNCA forma parte del mensaje firmado. El orden es normativo:
// cualquier desviación rompe interop.
package owid

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SWAN-community/owid/internal/codec"
	"github.com/SWAN-community/owid/internal/epoch"
	"github.com/SWAN-community/owid/internal/security/ecdsa256"
)

// Version1 es la única versión de formato definida.
const Version1 byte = 1

// Tolerance es el margen que se resta a la fecha de creación de cada clave
// al seleccionar candidatas por tiempo, para absorber skew de reloj entre
// participantes.
const Tolerance = time.Hour

// OWID ata los bytes de un target a (version, domain, timestamp, firma).
// Se crea sin firmar, se firma con la clave privada más nueva de un Signer,
// o se recibe serializado y se verifica. Una instancia NO es segura para
// mutación concurrente (la verificación escribe status y signer); el acceso
// de sólo lectura después de firmar sí lo es.
type OWID struct {
	Version   byte
	Domain    string
	Timestamp uint32
	Signature []byte

	target Target
	status Status
	signer *Signer
}

// New crea un OWID sin firmar para el target dado.
func New(target Target) *OWID {
	return &OWID{target: target, status: StatusNotStarted}
}

// FromByteArray crea un OWID desde su forma wire. El primer byte despacha
// por versión; sólo la 1 está definida.
func FromByteArray(target Target, data []byte) (*OWID, error) {
	r := codec.NewReader(data)
	version, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != Version1 {
		return nil, &UnsupportedVersionError{Version: version}
	}
	domain, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	timestamp, err := r.ReadDate()
	if err != nil {
		return nil, err
	}
	sig, err := r.ReadSignature()
	if err != nil {
		return nil, err
	}
	o := New(target)
	o.Version = version
	o.Domain = domain
	o.Timestamp = timestamp
	o.Signature = sig
	return o, nil
}

// FromBase64 crea un OWID desde su forma wire en base64.
func FromBase64(target Target, s string) (*OWID, error) {
	b, err := codec.FromBase64(s)
	if err != nil {
		return nil, err
	}
	return FromByteArray(target, b)
}

// Target devuelve el target referenciado (puede ser nil).
func (o *OWID) Target() Target {
	return o.target
}

// Status devuelve el estado de verificación actual.
func (o *OWID) Status() Status {
	return o.status
}

// Signer devuelve el signer registrado por la última firma/verificación
// exitosa vía signer o service; nil en cualquier otro caso.
func (o *OWID) Signer() *Signer {
	return o.signer
}

// IsSigned informa si hay una firma presente de exactamente 64 bytes.
func (o *OWID) IsSigned() bool {
	return len(o.Signature) == codec.SignatureLength
}

// Date devuelve el timestamp como instante de reloj.
func (o *OWID) Date() time.Time {
	return epoch.FromMinutes(o.Timestamp)
}

// SignatureBase64 devuelve la firma en base64, o "" si no está firmado.
func (o *OWID) SignatureBase64() string {
	if len(o.Signature) == 0 {
		return ""
	}
	return codec.ToBase64(o.Signature)
}

// messageBytes arma el mensaje canónico exacto que se firma y verifica.
func (o *OWID) messageBytes() ([]byte, error) {
	if o.target == nil {
		return nil, ErrNoTarget
	}
	if o.Domain == "" {
		return nil, ErrNoDomain
	}
	w := codec.NewWriter()
	if err := o.target.AddOwidData(w); err != nil {
		return nil, err
	}
	if err := w.WriteByte(int(o.Version)); err != nil {
		return nil, err
	}
	if err := w.WriteString(o.Domain); err != nil {
		return nil, err
	}
	if err := w.WriteUint32(o.Timestamp); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// begin marca la entrada a cualquier camino de verificación: estado
// Processing y signer registrado limpio.
func (o *OWID) begin() {
	o.status = StatusProcessing
	o.signer = nil
}

// fail marca el estado Exception y propaga el error.
func (o *OWID) fail(err error) error {
	o.status = StatusException
	return err
}

// ── Firma ──────────────────────────────────────────────────────────────

// SignWithKey firma con una clave privada crypto ya materializada: fija
// version=1, timestamp=ahora, arma el mensaje canónico y guarda la firma
// de 64 bytes. Post-condición: IsSigned() == true.
func (o *OWID) SignWithKey(privateKey any) error {
	o.Version = Version1
	o.Timestamp = epoch.NowInMinutes()
	msg, err := o.messageBytes()
	if err != nil {
		return err
	}
	sig, err := ecdsa256.Sign(privateKey, msg)
	if err != nil {
		return err
	}
	o.Signature = sig
	return nil
}

// SignWithPEM importa la clave privada desde PEM y firma.
func (o *OWID) SignWithPEM(pem string) error {
	key, err := ecdsa256.ImportPEM(pem)
	if err != nil {
		return err
	}
	return o.SignWithKey(key)
}

// SignWithSigner firma con la clave privada más nueva del Signer, fija el
// dominio del OWID al del signer y lo deja registrado.
func (o *OWID) SignWithSigner(s *Signer) error {
	newest, err := s.NewestPrivateKey()
	if err != nil {
		return err
	}
	o.Domain = s.Domain
	key, err := newest.CryptoKey()
	if err != nil {
		return err
	}
	if err := o.SignWithKey(key); err != nil {
		return err
	}
	o.signer = s
	return nil
}

// ── Verificación ───────────────────────────────────────────────────────

// VerifyWithKey rearma el mensaje canónico y lo verifica contra la clave
// pública crypto dada. Un mismatch devuelve StatusNotValid, nunca error;
// cualquier error del primitivo deja el estado en Exception y se propaga.
func (o *OWID) VerifyWithKey(publicKey any) (Status, error) {
	o.begin()
	msg, err := o.messageBytes()
	if err != nil {
		return StatusException, o.fail(err)
	}
	if len(o.Signature) != codec.SignatureLength {
		return StatusException, o.fail(codec.ErrBadSignatureLength)
	}
	ok, err := ecdsa256.Verify(publicKey, o.Signature, msg)
	if err != nil {
		return StatusException, o.fail(err)
	}
	if ok {
		o.status = StatusValid
	} else {
		o.status = StatusNotValid
	}
	return o.status, nil
}

// VerifyWithPublicKey materializa la clave crypto de la Key (lazy, con
// cache en la Key) y delega en VerifyWithKey.
func (o *OWID) VerifyWithPublicKey(k *Key) (Status, error) {
	o.begin()
	key, err := k.CryptoKey()
	if err != nil {
		return StatusException, o.fail(err)
	}
	return o.VerifyWithKey(key)
}

// VerifyWithPublicKeys selecciona la PRIMERA clave de la lista cuya fecha
// de creación ajustada (Created - Tolerance) no sea posterior al timestamp
// del OWID, y verifica sólo contra ella: la selección confía en el orden de
// lista y no cae a claves posteriores si la elegida no verifica. Si ninguna
// califica devuelve StatusKeyNotFound, nunca error.
func (o *OWID) VerifyWithPublicKeys(keys []*Key) (Status, error) {
	o.begin()
	t := o.Date()
	for _, k := range keys {
		if !k.Created.Add(-Tolerance).After(t) {
			return o.VerifyWithPublicKey(k)
		}
	}
	o.status = StatusKeyNotFound
	return o.status, nil
}

// VerifyWithSigner exige que el dominio del signer coincida con el del
// OWID (si no, DomainMismatchError fatal) y delega en VerifyWithPublicKeys.
// En resultado limpio (Valid/NotValid) deja el signer registrado.
func (o *OWID) VerifyWithSigner(s *Signer) (Status, error) {
	o.begin()
	if s.Domain != o.Domain {
		return StatusException, o.fail(&DomainMismatchError{OWID: o.Domain, Signer: s.Domain})
	}
	status, err := o.VerifyWithPublicKeys(s.PublicKeys)
	if err != nil {
		return status, err
	}
	if status == StatusValid || status == StatusNotValid {
		o.signer = s
	}
	return status, nil
}

// VerifyWithService resuelve el Signer de (version, domain) vía el servicio
// dado. Un signer desconocido devuelve StatusSignerNotFound; errores de
// resolución (fetch, cancelación) son fatales.
func (o *OWID) VerifyWithService(ctx context.Context, svc SignerService) (Status, error) {
	o.begin()
	s, err := svc.Get(ctx, o.Version, o.Domain)
	if err != nil {
		return StatusException, o.fail(err)
	}
	if s == nil {
		o.status = StatusSignerNotFound
		return o.status, nil
	}
	return o.VerifyWithSigner(s)
}

// ── Serialización ──────────────────────────────────────────────────────

// AsByteArray devuelve la forma wire del OWID v1:
//
//	version (1 byte) · domain (cstring) · timestamp (uint32 LE) · firma (64 B)
//
// Los bytes del target NO van acá: el target lo serializa su estructura
// contenedora por separado.
func (o *OWID) AsByteArray() ([]byte, error) {
	w := codec.NewWriter()
	if err := w.WriteByte(int(o.Version)); err != nil {
		return nil, err
	}
	if err := w.WriteString(o.Domain); err != nil {
		return nil, err
	}
	if err := w.WriteDate(o.Timestamp); err != nil {
		return nil, err
	}
	if err := w.WriteSignature(o.Signature); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// AsBase64 devuelve la forma wire en base64 estándar.
func (o *OWID) AsBase64() (string, error) {
	b, err := o.AsByteArray()
	if err != nil {
		return "", err
	}
	return codec.ToBase64(b), nil
}

type owidJSON struct {
	Version   byte   `json:"version"`
	Domain    string `json:"domain"`
	Timestamp uint32 `json:"timestamp"`
	Signature string `json:"signature"`
}

// MarshalJSON serializa {version, domain, timestamp, signature(base64)}.
func (o *OWID) MarshalJSON() ([]byte, error) {
	return json.Marshal(owidJSON{
		Version:   o.Version,
		Domain:    o.Domain,
		Timestamp: o.Timestamp,
		Signature: o.SignatureBase64(),
	})
}

// UnmarshalJSON copia version, domain, timestamp y la firma decodificada.
func (o *OWID) UnmarshalJSON(data []byte) error {
	var v owidJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	var sig []byte
	if v.Signature != "" {
		b, err := codec.FromBase64(v.Signature)
		if err != nil {
			return err
		}
		sig = b
	}
	o.Version = v.Version
	o.Domain = v.Domain
	o.Timestamp = v.Timestamp
	o.Signature = sig
	o.status = StatusNotStarted
	o.signer = nil
	return nil
}
