package service

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"

	"secfile/internal/core/domain"
	"secfile/internal/core/ports"
	"secfile/internal/pkg/crypto/aes"
	"secfile/internal/pkg/crypto/chacha"
)

// Service is the segment-level half of the protection pipeline.
type Service interface {
	ports.SegmentService
}

type EncryptionService struct {
	encryptors map[domain.Algorithm]ports.Encryptor
	workers    int
	issuer     string
	log        logrus.FieldLogger
}

type Option func(*EncryptionService)

// WithEncryptor registers enc for its algorithm, replacing any default.
func WithEncryptor(enc ports.Encryptor) Option {
	return func(s *EncryptionService) {
		s.encryptors[enc.Algorithm()] = enc
	}
}

// WithWorkers bounds the number of segments processed concurrently.
func WithWorkers(n int) Option {
	return func(s *EncryptionService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithIssuer sets the Issuer header written to new credentials.
func WithIssuer(issuer string) Option {
	return func(s *EncryptionService) {
		s.issuer = issuer
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *EncryptionService) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(opts ...Option) *EncryptionService {
	s := &EncryptionService{
		encryptors: map[domain.Algorithm]ports.Encryptor{
			domain.AlgorithmAES256GCM:         aes.NewAESEncryptor(aes.KeySize),
			domain.AlgorithmXChaCha20Poly1305: chacha.NewXChaChaEncryptor(),
		},
		workers: runtime.NumCPU(),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EncryptionService) encryptorFor(alg domain.Algorithm) (ports.Encryptor, error) {
	if alg == "" {
		alg = domain.AlgorithmAES256GCM
	}
	enc, ok := s.encryptors[alg]
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
	return enc, nil
}

func (s *EncryptionService) workerLimit(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.workers
}
