package utils

import (
	"math/rand"
	"strings"
	"unicode"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var commonFirstNames = []string{
	"Anna", "Maria", "Katarzyna", "Małgorzata", "Agnieszka", "Barbara", "Ewa", "Krystyna",
	"Magdalena", "Joanna", "Żaneta", "Jolanta", "Piotr", "Krzysztof", "Andrzej", "Tomasz",
	"Paweł", "Michał", "Marcin", "Łukasz", "Grzegorz", "Józef", "Stanisław", "Wojciech",
}

var commonLastNames = []string{
	"Nowak", "Kowalski", "Wiśniewski", "Wójcik", "Kowalczyk", "Kamiński", "Lewandowski",
	"Zieliński", "Szymański", "Woźniak", "Dąbrowski", "Kozłowski", "Jankowski", "Mazur",
	"Kwiatkowski", "Krawczyk", "Piotrowski", "Grabowski", "Nowakowski", "Pawłowski",
}

var departments = []string{"Produkcja", "Jakość", "Logistyka", "Lakiernia", "Utrzymanie ruchu"}

func GenerateRandomPolishName() string {
	first := commonFirstNames[rand.Intn(len(commonFirstNames))]
	last := commonLastNames[rand.Intn(len(commonLastNames))]
	return first + " " + last
}

// 多数用户只有 employee 角色，少数拥有审批角色
var weightedRoles = []domain.Role{
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleGroupLeader,
	domain.RoleTeamManager,
	domain.RoleProductionManager,
	domain.RoleQualityManager,
	domain.RoleLogisticsManager,
	domain.RoleHR,
}

func GenerateRandomRole() domain.Role {
	return weightedRoles[rand.Intn(len(weightedRoles))]
}

// ł 在 Unicode 中没有分解形式，需要单独映射
var stripDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Map(func(r rune) rune {
		switch r {
		case 'ł':
			return 'l'
		case 'Ł':
			return 'L'
		}
		return r
	}),
	norm.NFC,
)

// ASCIIFold 去掉波兰语字母上的变音符号，例如 Wiśniewski -> Wisniewski
func ASCIIFold(s string) string {
	result, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		return s
	}
	return result
}

// LoginFromName 根据姓名生成登录名，格式为 名.姓
func LoginFromName(fullName string) string {
	parts := strings.Fields(strings.ToLower(ASCIIFold(fullName)))
	return strings.Join(parts, ".")
}

var digits = "0123456789"

func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomPolishName()

	// 加随机数字后缀，降低重名概率
	username := LoginFromName(fullName)
	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Department:   departments[rand.Intn(len(departments))],
		Roles:        []domain.Role{GenerateRandomRole()},
		IsActive:     true,
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	randomPassword := make([]rune, length)
	for i := range randomPassword {
		randomPassword[i] = letters[rand.Intn(len(letters))]
	}
	return string(randomPassword)
}
