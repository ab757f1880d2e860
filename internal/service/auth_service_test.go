package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/utils"
)

type authFixture struct {
	svc    *AuthService
	store  *memStore
	mail   *fakeNotifier
	signer *utils.TokenSigner
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	store := newMemStore()
	mail := &fakeNotifier{}
	signer := utils.NewTokenSigner([]byte("test-secret"), time.Hour)
	svc := NewAuthService(store, utils.NewPasswordHasher(bcrypt.MinCost), signer, mail,
		Links{Domain: "http://api.test", ClientDomain: "http://app.test"}, zaptest.NewLogger(t))
	return authFixture{svc: svc, store: store, mail: mail, signer: signer}
}

func TestAuth_AliceScenario(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, msgRegistered, msg.Message)

	acc, err := f.store.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatePendingVerification, acc.State())
	assert.Equal(t, model.RoleNormalUser, acc.Role)

	mail, ok := f.mail.last("verify")
	require.True(t, ok, "verification mail queued")
	assert.True(t, strings.HasPrefix(mail.link, "http://api.test/api/users/verify-email/"))

	res, err := f.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Empty(t, res.Token)
	assert.Equal(t, msgPleaseVerify, res.Message)

	_, err = f.svc.VerifyEmail(ctx, lastSegment(mail.link))
	require.NoError(t, err)
	acc, _ = f.store.GetByEmail(ctx, "alice@example.com")
	assert.Equal(t, model.StateVerified, acc.State())
	assert.Nil(t, acc.VerificationToken)

	res, err = f.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	claims, err := f.signer.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, claims.ID)
	assert.Equal(t, model.RoleNormalUser, claims.Role)
	_, ok = f.mail.last("login")
	assert.True(t, ok, "login notice queued")

	_, err = f.svc.Login(ctx, "alice@example.com", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuth_RegisterDuplicateIsCaseInsensitive(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Email: "Bob@Example.com", Password: "other12"})
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	all, _ := f.store.List(ctx)
	assert.Len(t, all, 1)
}

func TestAuth_RegisterRejectsInvalidInput(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "secret1"},
		{Email: "not-an-email", Password: "secret1"},
		{Email: "c@example.com", Password: "123"},
		{Email: "c@example.com", Password: "secret1", UserName: "x"},
		{Email: "c@example.com", Password: strings.Repeat("a", 80)},
	}
	for i, in := range cases {
		_, err := f.svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput, "case %d", i)
	}
	all, _ := f.store.List(ctx)
	assert.Empty(t, all)
}

func TestAuth_RegisterMailFailureKeepsAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.mail.setFail(true)

	_, err := f.svc.Register(ctx, RegisterInput{Email: "dan@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrNotificationTimeout)

	acc, err := f.store.GetByEmail(ctx, "dan@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.StatePendingVerification, acc.State())
	require.NotNil(t, acc.VerificationToken)
}

func TestAuth_LoginUnknownAndWrongPasswordAreIdentical(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "erin@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, errUnknown := f.svc.Login(ctx, "nobody@example.com", "secret1")
	_, errWrong := f.svc.Login(ctx, "erin@example.com", "secret2")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestAuth_LoginPendingRegeneratesMissingToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "fay@example.com", Password: "secret1"})
	require.NoError(t, err)

	acc, _ := f.store.GetByEmail(ctx, "fay@example.com")
	f.store.mu.Lock()
	acc.VerificationToken = nil
	f.store.byID[acc.ID] = acc
	f.store.mu.Unlock()

	// resend fails, login still answers with the prompt
	f.mail.setFail(true)
	res, err := f.svc.Login(ctx, "fay@example.com", "secret1")
	require.NoError(t, err)
	assert.True(t, res.Pending)
	assert.Empty(t, res.Token)

	acc, _ = f.store.GetByEmail(ctx, "fay@example.com")
	require.NotNil(t, acc.VerificationToken)
	assert.Len(t, *acc.VerificationToken, 64)

	f.mail.setFail(false)
	_, err = f.svc.Login(ctx, "fay@example.com", "secret1")
	require.NoError(t, err)
	mail, ok := f.mail.last("verify")
	require.True(t, ok)
	assert.Equal(t, *acc.VerificationToken, lastSegment(mail.link), "existing token is reused")
}

func TestAuth_LoginNoticeFailureDoesNotBlockLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "gus@example.com", Password: "secret1"})
	require.NoError(t, err)
	mail, _ := f.mail.last("verify")
	_, err = f.svc.VerifyEmail(ctx, lastSegment(mail.link))
	require.NoError(t, err)

	f.mail.setFail(true)
	res, err := f.svc.Login(ctx, "gus@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.False(t, res.Pending)
}

func TestAuth_VerifyEmailIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "hal@example.com", Password: "secret1"})
	require.NoError(t, err)
	mail, _ := f.mail.last("verify")
	token := lastSegment(mail.link)

	_, err = f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = f.svc.VerifyEmail(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuth_VerifyEmailConcurrentOnlyOneWins(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "ivy@example.com", Password: "secret1"})
	require.NoError(t, err)
	mail, _ := f.mail.last("verify")
	token := lastSegment(mail.link)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyEmail(ctx, token); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestAuth_PasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "jo@example.com", Password: "secret1"})
	require.NoError(t, err)
	acc, _ := f.store.GetByEmail(ctx, "jo@example.com")

	msg, err := f.svc.RequestPasswordReset(ctx, "JO@example.com")
	require.NoError(t, err)
	assert.Equal(t, msgResetSent, msg.Message)
	mail, ok := f.mail.last("reset")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(mail.link, "http://app.test/reset-password/"+strconv.FormatUint(acc.ID, 10)+"/"))
	token := lastSegment(mail.link)

	_, err = f.svc.CheckResetLink(ctx, acc.ID, token)
	require.NoError(t, err)
	_, err = f.svc.CheckResetLink(ctx, acc.ID, "nope")
	assert.ErrorIs(t, err, ErrInvalidResetLink)
	_, err = f.svc.CheckResetLink(ctx, acc.ID+100, token)
	assert.ErrorIs(t, err, ErrInvalidResetLink)

	_, err = f.svc.ResetPassword(ctx, acc.ID, token, "newsecret")
	require.NoError(t, err)

	// link is spent
	_, err = f.svc.ResetPassword(ctx, acc.ID, token, "another1")
	assert.ErrorIs(t, err, ErrInvalidResetLink)
	_, err = f.svc.CheckResetLink(ctx, acc.ID, token)
	assert.ErrorIs(t, err, ErrInvalidResetLink)

	stored, _ := f.store.GetByID(ctx, acc.ID)
	assert.Nil(t, stored.ResetPasswordToken)
	hasher := utils.NewPasswordHasher(bcrypt.MinCost)
	assert.True(t, hasher.Verify("newsecret", stored.PasswordHash))
	assert.False(t, hasher.Verify("secret1", stored.PasswordHash))
}

func TestAuth_NewResetRequestReplacesOldToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "kim@example.com", Password: "secret1"})
	require.NoError(t, err)
	acc, _ := f.store.GetByEmail(ctx, "kim@example.com")

	_, err = f.svc.RequestPasswordReset(ctx, "kim@example.com")
	require.NoError(t, err)
	first, _ := f.mail.last("reset")
	_, err = f.svc.RequestPasswordReset(ctx, "kim@example.com")
	require.NoError(t, err)
	second, _ := f.mail.last("reset")
	require.NotEqual(t, first.link, second.link)

	_, err = f.svc.CheckResetLink(ctx, acc.ID, lastSegment(first.link))
	assert.ErrorIs(t, err, ErrInvalidResetLink)
	_, err = f.svc.CheckResetLink(ctx, acc.ID, lastSegment(second.link))
	assert.NoError(t, err)
}

func TestAuth_RequestPasswordResetErrors(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestPasswordReset(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.Register(ctx, RegisterInput{Email: "lee@example.com", Password: "secret1"})
	require.NoError(t, err)
	f.mail.setFail(true)
	_, err = f.svc.RequestPasswordReset(ctx, "lee@example.com")
	assert.ErrorIs(t, err, ErrNotificationTimeout)
}

func TestAuth_ResetPasswordConcurrentOnlyOneWins(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Email: "max@example.com", Password: "secret1"})
	require.NoError(t, err)
	acc, _ := f.store.GetByEmail(ctx, "max@example.com")
	_, err = f.svc.RequestPasswordReset(ctx, "max@example.com")
	require.NoError(t, err)
	mail, _ := f.mail.last("reset")
	token := lastSegment(mail.link)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.svc.ResetPassword(ctx, acc.ID, token, "pass-"+strconv.Itoa(i)); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestAuth_ResetPasswordValidatesNewPassword(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.svc.ResetPassword(context.Background(), 1, "tok", "123")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
