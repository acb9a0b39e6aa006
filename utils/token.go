package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

type JwtCustomClaim struct {
	Operator string `json:"operator"`
	jwt.StandardClaims
}

// OperatorAuthEnabled reports whether the control service requires a bearer token.
func OperatorAuthEnabled() bool {
	return strings.TrimSpace(os.Getenv("OPERATOR_TOKEN_SECRET")) != ""
}

func getJwtSecret() []byte {
	return []byte(strings.TrimSpace(os.Getenv("OPERATOR_TOKEN_SECRET")))
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Hour * time.Duration(hours)
}

func JwtGenerate(operator string) (string, error) {
	secret := getJwtSecret()
	if len(secret) == 0 {
		return "", errors.New("OPERATOR_TOKEN_SECRET is required")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		Operator: operator,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(tokenLifespan()).Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	})

	token, err := t.SignedString(secret)
	if err != nil {
		return "", err
	}

	return token, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}
