package auth

import (
	"fmt"

	"github.com/navalmess/api/internal/model"
)

// Fixed system/test accounts: the operational roles plus a block of demo
// student accounts, all bypassing the DB lookup when the process is not
// running in production. Each account's password is its own NII, the same
// default the CSV bulk-import path uses for an omitted password column.
var systemAccounts = buildSystemAccounts()

// fallbackAdminHash guards the FALLBACK_ADMIN identity, honored only when
// no DB admin exists yet.
var fallbackAdminHash = mustHash("admin")

func buildSystemAccounts() map[string]systemAccount {
	accounts := map[string]systemAccount{
		"admin":      {role: model.RoleAdmin, name: "System Administrator"},
		"cozinha":    {role: model.RoleKitchen, name: "Kitchen Staff"},
		"oficialdia": {role: model.RoleDutyOfficer, name: "Duty Officer"},
	}
	for i := 1; i <= 4; i++ {
		nii := fmt.Sprintf("cmd%d", i)
		accounts[nii] = systemAccount{role: model.RoleYearCommander, name: fmt.Sprintf("Year Commander %d", i)}
	}
	for i := 1; i <= 15; i++ {
		nii := fmt.Sprintf("teste%d", i)
		accounts[nii] = systemAccount{role: model.RoleStudent, name: fmt.Sprintf("Test Student %d", i), year: 1}
	}

	out := make(map[string]systemAccount, len(accounts))
	for nii, acc := range accounts {
		acc.nii = nii
		acc.hash = mustHash(nii)
		out[nii] = acc
	}
	return out
}

type systemAccount struct {
	nii  string
	role model.Role
	name string
	year int
	hash string
}

func mustHash(password string) string {
	h, err := HashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("auth: hashing built-in account password: %v", err))
	}
	return h
}

// lookupSystemAccount returns the in-process user record and password hash
// for a fixed system/test account, or ok=false if nii names none.
func lookupSystemAccount(nii string) (model.User, string, bool) {
	acc, ok := systemAccounts[nii]
	if !ok {
		return model.User{}, "", false
	}
	return model.User{
		NII:      acc.nii,
		FullName: acc.name,
		Role:     acc.role,
		Year:     acc.year,
		Active:   true,
	}, acc.hash, true
}
