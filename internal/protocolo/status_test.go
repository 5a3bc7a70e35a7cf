package protocolo

import (
	"errors"
	"math/rand"
	"testing"
)

func TestProtocolTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusVinculado, StatusProgresso},
		{StatusVinculado, StatusCancelado},
		{StatusProgresso, StatusPendencia},
		{StatusProgresso, StatusConcluido},
		{StatusProgresso, StatusCancelado},
		{StatusPendencia, StatusProgresso},
		{StatusPendencia, StatusCancelado},
	}
	for _, tc := range allowed {
		if err := CanTransition(tc.from, tc.to); err != nil {
			t.Errorf("%s → %s deveria ser permitido: %v", tc.from, tc.to, err)
		}
	}

	// Status terminais não admitem nenhuma saída.
	all := []Status{StatusVinculado, StatusProgresso, StatusConcluido, StatusCancelado, StatusPendencia}
	for _, from := range []Status{StatusConcluido, StatusCancelado} {
		for _, to := range all {
			if err := CanTransition(from, to); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s → %s deveria falhar com ErrInvalidTransition, obteve %v", from, to, err)
			}
		}
	}

	// VINCULADO nunca pula direto para CONCLUIDO nem para PENDENCIA.
	if err := CanTransition(StatusVinculado, StatusConcluido); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("VINCULADO → CONCLUIDO deveria falhar, obteve %v", err)
	}
	if err := CanTransition(StatusVinculado, StatusPendencia); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("VINCULADO → PENDENCIA deveria falhar, obteve %v", err)
	}
}

func TestCanComplete(t *testing.T) {
	if err := CanComplete(StatusProgresso, 0, 0); err != nil {
		t.Fatalf("conclusão limpa deveria passar: %v", err)
	}
	if err := CanComplete(StatusProgresso, 2, 0); !errors.Is(err, ErrIncompleteRequirements) {
		t.Errorf("pendências abertas deveriam bloquear com ErrIncompleteRequirements, obteve %v", err)
	}
	if err := CanComplete(StatusProgresso, 0, 1); !errors.Is(err, ErrIncompleteRequirements) {
		t.Errorf("documento obrigatório não aprovado deveria bloquear, obteve %v", err)
	}
	if err := CanComplete(StatusVinculado, 0, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("conclusão fora de PROGRESSO deveria falhar na transição, obteve %v", err)
	}

	// A transição inválida prevalece sobre requisitos incompletos.
	if err := CanComplete(StatusCancelado, 3, 3); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("status terminal deveria falhar na transição, obteve %v", err)
	}
}

// Abre e fecha pendências em sequências arbitrárias e verifica que o
// protocolo sempre termina em PROGRESSO quando o saldo volta a zero.
func TestPendingRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		status := StatusProgresso
		open := 0
		steps := 1 + rng.Intn(20)
		for j := 0; j < steps; j++ {
			if open == 0 || rng.Intn(2) == 0 {
				status = StatusAfterPendingOpened(status)
				open++
			} else {
				open--
				status = StatusAfterPendingClosed(status, open)
			}
			if open > 0 && status != StatusPendencia {
				t.Fatalf("com %d pendência(s) aberta(s) esperava PENDENCIA, obteve %s", open, status)
			}
			if open == 0 && status != StatusProgresso {
				t.Fatalf("sem pendências abertas esperava PROGRESSO, obteve %s", status)
			}
		}
		for open > 0 {
			open--
			status = StatusAfterPendingClosed(status, open)
		}
		if status != StatusProgresso {
			t.Fatalf("após fechar todas as pendências esperava PROGRESSO, obteve %s", status)
		}
	}
}

func TestCanStartStage(t *testing.T) {
	stages := []Stage{
		{StageName: "Triagem", StageOrder: 1, Status: StageCompleted},
		{StageName: "Análise", StageOrder: 2, Status: StagePending},
		{StageName: "Parecer", StageOrder: 3, Status: StagePending},
	}

	if err := CanStartStage(stages[1], stages); err != nil {
		t.Fatalf("segunda etapa com a primeira concluída deveria iniciar: %v", err)
	}
	if err := CanStartStage(stages[2], stages); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("terceira etapa com a segunda aberta deveria falhar com ErrOutOfOrder, obteve %v", err)
	}

	// SKIPPED conta como terminal e libera a etapa seguinte.
	stages[1].Status = StageSkipped
	if err := CanStartStage(stages[2], stages); err != nil {
		t.Errorf("etapa anterior pulada deveria liberar a seguinte: %v", err)
	}

	// Etapa já em execução não reinicia.
	stages[2].Status = StageInProgress
	if err := CanStartStage(stages[2], stages); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reiniciar etapa em execução deveria falhar, obteve %v", err)
	}
}

func TestDocumentTransitions(t *testing.T) {
	if err := CanTransitionDocument(DocPending, DocUploaded); err != nil {
		t.Fatalf("PENDING → UPLOADED deveria passar: %v", err)
	}
	if err := CanTransitionDocument(DocRejected, DocUploaded); err != nil {
		t.Fatalf("reenvio após rejeição deveria passar: %v", err)
	}
	if err := CanTransitionDocument(DocApproved, DocUploaded); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("documento aprovado é imutável, obteve %v", err)
	}
	if err := CanTransitionDocument(DocPending, DocApproved); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("aprovar sem envio deveria falhar, obteve %v", err)
	}
}
