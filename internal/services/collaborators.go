package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"loanflow/internal/logger"
	"loanflow/internal/models"
	"loanflow/internal/uuid"
)

// DocumentStore persists uploaded files and returns a stable storage key per
// file. The engine treats it as an opaque collaborator.
type DocumentStore interface {
	Save(fileName string, content io.Reader) (storageKey string, err error)
	Remove(storageKey string) error
}

// TermSheetRenderer renders a loan + quote snapshot into a document and
// returns its storage key. The production renderer produces a PDF; the
// engine only sees the locator.
type TermSheetRenderer interface {
	Render(loan *models.LoanRequest) (storageKey string, err error)
}

// EmailPayload is the typed payload handed to the delivery queue.
type EmailPayload struct {
	RecipientID uint
	Type        models.NotificationType
	Subject     string
	Body        string
}

// EmailQueue accepts outbound email payloads for asynchronous delivery.
// Enqueue failures are always treated as best-effort by callers.
type EmailQueue interface {
	Enqueue(payload EmailPayload) error
}

// PaymentIntent is the gateway's handle for a pending payment.
type PaymentIntent struct {
	ID     string  `json:"id"`
	LoanID uint    `json:"loan_id"`
	Amount float64 `json:"amount"`
}

// PaymentGateway creates payment intents and resolves completion callbacks.
type PaymentGateway interface {
	CreateIntent(loanID uint, amount float64) (*PaymentIntent, error)
	ResolveIntent(intentID string) (*PaymentIntent, error)
}

// localDocumentStore stores files on disk under a configured directory,
// keyed by UUIDv7 so keys are stable and time-ordered.
type localDocumentStore struct {
	dir string
}

// NewLocalDocumentStore creates a disk-backed DocumentStore rooted at dir.
func NewLocalDocumentStore(dir string) (DocumentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &localDocumentStore{dir: dir}, nil
}

func (s *localDocumentStore) Save(fileName string, content io.Reader) (string, error) {
	key := uuid.New() + filepath.Ext(fileName)

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return key, nil
}

func (s *localDocumentStore) Remove(storageKey string) error {
	return os.Remove(filepath.Join(s.dir, storageKey))
}

// textTermSheetRenderer writes a plain-text term sheet into the document
// store. It stands in for the PDF rendering service in development and
// tests.
type textTermSheetRenderer struct {
	store DocumentStore
}

// NewTextTermSheetRenderer creates a renderer backed by the given store.
func NewTextTermSheetRenderer(store DocumentStore) TermSheetRenderer {
	return &textTermSheetRenderer{store: store}
}

func (r *textTermSheetRenderer) Render(loan *models.LoanRequest) (string, error) {
	body := fmt.Sprintf(
		"TERM SHEET\n\nLoan: %s\nProperty value: %.2f\nRequested LTV: %.2f%%\nLoan amount: %.2f\nIndicative rate range: %s\nEstimated monthly payment: %.2f\nEstimated closing costs: %.2f\n\nThis soft quote is indicative and non-binding.\n",
		loan.ReferenceNumber, loan.PropertyValue, loan.RequestedLTV, loan.LoanAmount,
		loan.RateRange, loan.EstimatedMonthlyPayment, loan.TotalClosingCosts)

	return r.store.Save("term-sheet-"+loan.ReferenceNumber+".txt", strings.NewReader(body))
}

// logEmailQueue logs enqueued payloads instead of delivering them. The
// delivery worker consumes the real queue in production.
type logEmailQueue struct {
	from string
}

// NewLogEmailQueue creates an EmailQueue that only logs payloads.
func NewLogEmailQueue(from string) EmailQueue {
	return &logEmailQueue{from: from}
}

func (q *logEmailQueue) Enqueue(payload EmailPayload) error {
	logger.Get().Infow("email enqueued",
		"from", q.from,
		"recipient_id", payload.RecipientID,
		"type", payload.Type,
		"subject", payload.Subject,
	)
	return nil
}

// manualPaymentGateway is an in-process gateway for development and tests:
// intents are held in memory and resolved by the webhook handler.
type manualPaymentGateway struct {
	mu      sync.Mutex
	intents map[string]*PaymentIntent
}

// NewManualPaymentGateway creates an in-memory PaymentGateway.
func NewManualPaymentGateway() PaymentGateway {
	return &manualPaymentGateway{intents: make(map[string]*PaymentIntent)}
}

func (g *manualPaymentGateway) CreateIntent(loanID uint, amount float64) (*PaymentIntent, error) {
	intent := &PaymentIntent{
		ID:     "pi_" + uuid.New(),
		LoanID: loanID,
		Amount: amount,
	}
	g.mu.Lock()
	g.intents[intent.ID] = intent
	g.mu.Unlock()
	return intent, nil
}

func (g *manualPaymentGateway) ResolveIntent(intentID string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent, ok := g.intents[intentID]
	if !ok {
		return nil, fmt.Errorf("unknown payment intent %q", intentID)
	}
	return intent, nil
}
