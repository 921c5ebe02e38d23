package cvc

// Level identifies one of the three fixed security levels of the profile.
// Every length/algorithm association lives in the table below; call sites
// derive a Level from a key length and read everything else off it.
type Level int

const (
	Level128 Level = iota // 32-byte private keys, belt-hash
	Level192              // 48-byte private keys, wide-hash/192
	Level256              // 64-byte private keys, wide-hash/256
)

type levelInfo struct {
	privKeyLen int
	pubKeyLen  int
	sigLen     int
	hashLen    int
	hashName   string
}

var levels = [...]levelInfo{
	Level128: {privKeyLen: 32, pubKeyLen: 64, sigLen: 48, hashLen: 32, hashName: "belt-hash"},
	Level192: {privKeyLen: 48, pubKeyLen: 96, sigLen: 72, hashLen: 48, hashName: "wide-hash/192"},
	Level256: {privKeyLen: 64, pubKeyLen: 128, sigLen: 96, hashLen: 64, hashName: "wide-hash/256"},
}

// LevelByPrivateKeyLen maps a private key byte length to its level.
func LevelByPrivateKeyLen(n int) (Level, error) {
	for l, info := range levels {
		if info.privKeyLen == n {
			return Level(l), nil
		}
	}
	return 0, ErrBadInput
}

// LevelByPublicKeyLen maps a public key byte length to its level.
func LevelByPublicKeyLen(n int) (Level, error) {
	for l, info := range levels {
		if info.pubKeyLen == n {
			return Level(l), nil
		}
	}
	return 0, ErrBadPublicKey
}

func (l Level) valid() bool {
	return l >= 0 && int(l) < len(levels)
}

// PrivateKeyLen returns the private key byte length of the level.
func (l Level) PrivateKeyLen() int { return levels[l].privKeyLen }

// PublicKeyLen returns the public key byte length: twice the private key.
func (l Level) PublicKeyLen() int { return levels[l].pubKeyLen }

// SignatureLen returns the signature byte length: 1.5 times the private key.
func (l Level) SignatureLen() int { return levels[l].sigLen }

// HashLen returns the digest byte length of the level's hash algorithm.
func (l Level) HashLen() int { return levels[l].hashLen }

// HashName returns the name of the level's hash algorithm.
func (l Level) HashName() string { return levels[l].hashName }

func (l Level) String() string {
	if !l.valid() {
		return "cvc-invalid"
	}
	switch l {
	case Level128:
		return "cvc-128"
	case Level192:
		return "cvc-192"
	default:
		return "cvc-256"
	}
}
