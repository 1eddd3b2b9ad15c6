package rbac

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// indonesianReasons translates the canonical English reasons.
var indonesianReasons = map[string]string{
	ReasonCreatePostGuest:    "Hanya anggota terdaftar yang dapat membuat postingan. Silakan daftar atau masuk untuk melanjutkan.",
	ReasonCreatePostDenied:   "Izin tidak cukup untuk membuat postingan.",
	ReasonManageGroupsGuest:  "Silakan masuk sebagai administrator untuk mengelola grup.",
	ReasonManageGroupsDenied: "Hanya administrator yang dapat mengelola grup.",
	ReasonViewMembersGuest:   "Silakan masuk untuk melihat daftar anggota.",
	ReasonViewMembersDenied:  "Izin tidak cukup untuk melihat daftar anggota.",
	ReasonDeletePostNotOwner: "Anda hanya dapat menghapus postingan Anda sendiri.",
	ReasonAccessAdminGuest:   "Silakan masuk sebagai administrator untuk membuka dasbor admin.",
	ReasonAccessAdminDenied:  "Hanya administrator yang dapat membuka dasbor admin.",
	ReasonVerifyFailed:       "Tidak dapat memverifikasi izin. Silakan coba lagi.",
	ReasonUnknownPermission:  "Jenis izin tidak dikenal",
}

// Localizer renders decision reasons in the caller's language.
type Localizer struct {
	catalog   catalog.Catalog
	matcher   language.Matcher
	supported []language.Tag
}

// NewLocalizer builds a Localizer with the bundled translations.
func NewLocalizer() (*Localizer, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range indonesianReasons {
		if err := builder.SetString(language.English, key, key); err != nil {
			return nil, fmt.Errorf("rbac: catalog en: %w", err)
		}
		if err := builder.SetString(language.Indonesian, key, msg); err != nil {
			return nil, fmt.Errorf("rbac: catalog id: %w", err)
		}
	}
	supported := []language.Tag{language.English, language.Indonesian}
	return &Localizer{
		catalog:   builder,
		matcher:   language.NewMatcher(supported),
		supported: supported,
	}, nil
}

// Match picks the best supported language for an Accept-Language header.
func (l *Localizer) Match(acceptLanguage string) language.Tag {
	if l == nil {
		return language.English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := l.matcher.Match(tags...)
	return l.supported[idx]
}

// Localize returns d with its reason translated for tag.
func (l *Localizer) Localize(tag language.Tag, d Decision) Decision {
	if l == nil || d.Allowed || d.Reason == "" {
		return d
	}
	printer := message.NewPrinter(tag, message.Catalog(l.catalog))
	d.Reason = printer.Sprintf(d.Reason)
	return d
}
