package browser

import (
	"encoding/json"
	"fmt"

	"github.com/starwell/voidvault-bridge/pkg/field"
)

// bindingName is the page function the capture script reports through.
const bindingName = "__voidvault"

// Page event kinds sent through the binding.
const (
	eventFocus   = "focus"
	eventBlur    = "blur"
	eventKey     = "key"
	eventToggle  = "toggle"
	eventPreview = "preview"
)

type scriptConfig struct {
	Binding string       `json:"binding"`
	Toggle  field.Hotkey `json:"toggle"`
	Preview field.Hotkey `json:"preview"`
}

// captureScript forwards password-field focus changes, the hotkeys and,
// while capture is on, every keydown. Captured keys other than Tab never
// reach the page.
const captureScript = `(() => {
  if (window.__voidvaultInstalled) return;
  window.__voidvaultInstalled = true;
  const cfg = %s;
  const send = (kind, payload) => {
    const fn = window[cfg.binding];
    if (fn) fn(kind, payload === undefined ? null : payload);
  };
  let capturing = false;
  window.__voidvaultSetCapturing = (on) => { capturing = !!on; };

  const matches = (hk, e) => !!hk && !!hk.key &&
    (e.key.toLowerCase() === hk.key.toLowerCase() || e.code === 'Key' + hk.key.toUpperCase()) &&
    e.ctrlKey === hk.ctrl && e.altKey === hk.alt && e.shiftKey === hk.shift && e.metaKey === hk.meta;
  const isPassword = (el) => el instanceof HTMLInputElement && el.type === 'password';
  const describe = (el) => {
    const all = Array.from(document.querySelectorAll('input[type="password"]'));
    let selector = 'input[type="password"] >> nth=' + all.indexOf(el);
    if (el.id && /^[A-Za-z_-][A-Za-z0-9_-]*$/.test(el.id)) {
      selector = '#' + el.id;
    } else if (el.name) {
      selector = 'input[type="password"][name=' + JSON.stringify(el.name) + ']';
    }
    return { selector, type: el.type, name: el.name || '', id: el.id || '', autocomplete: el.autocomplete || '' };
  };

  document.addEventListener('focusin', (e) => {
    if (isPassword(e.target)) send('focus', describe(e.target));
  }, true);
  document.addEventListener('focusout', (e) => {
    if (isPassword(e.target)) send('blur');
  }, true);
  document.addEventListener('keydown', (e) => {
    for (const [kind, hk] of [['toggle', cfg.toggle], ['preview', cfg.preview]]) {
      if (matches(hk, e)) {
        e.preventDefault();
        e.stopPropagation();
        send(kind);
        return;
      }
    }
    if (!capturing) return;
    if (e.key !== 'Tab') {
      e.preventDefault();
      e.stopPropagation();
    }
    send('key', { key: e.key, ctrlKey: e.ctrlKey, altKey: e.altKey, metaKey: e.metaKey, shiftKey: e.shiftKey });
  }, true);
})();`

// buildCaptureScript renders the capture script for the given hotkeys.
func buildCaptureScript(toggle, preview field.Hotkey) (string, error) {
	cfg, err := json.Marshal(scriptConfig{Binding: bindingName, Toggle: toggle, Preview: preview})
	if err != nil {
		return "", fmt.Errorf("failed to encode script config: %w", err)
	}
	return fmt.Sprintf(captureScript, cfg), nil
}

// setValueScript assigns through the native setter so frameworks that
// track the value property see the change, then fires input and change.
const setValueScript = `(el, value) => {
  const setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value').set;
  setter.call(el, value);
  el.dispatchEvent(new Event('input', { bubbles: true }));
  el.dispatchEvent(new Event('change', { bubbles: true }));
}`

const setIndicatorScript = `(el, ind) => {
  if (!ind.Active) {
    el.style.outline = '';
    el.removeAttribute('data-voidvault');
    return;
  }
  let color = ind.MeetsMinimum ? '#2e9d4b' : '#d98c1a';
  if (ind.Preview) color = '#2f6fd6';
  if (ind.Error) color = '#c8322b';
  el.style.outline = '2px solid ' + color;
  el.setAttribute('data-voidvault', ind.Preview ? 'preview' : 'active');
  el.title = ind.Error || ('v' + ind.Counter + (ind.Preview ? ' (preview)' : ''));
}`

const setCapturingScript = `(on) => { if (window.__voidvaultSetCapturing) window.__voidvaultSetCapturing(on); }`

// confirmScript shows a modal and resolves with the user's choice. Its
// keyboard handler sits on window in the capture phase so it runs before
// the capture script's document listener.
const confirmScript = `([title, detail]) => new Promise((resolve) => {
  const dialog = document.createElement('dialog');
  dialog.setAttribute('data-voidvault-confirm', '');
  dialog.style.cssText = 'font:14px system-ui,sans-serif;padding:16px 20px;border-radius:8px;border:1px solid #999';
  const heading = document.createElement('p');
  heading.textContent = title;
  heading.style.fontWeight = '600';
  const body = document.createElement('p');
  body.textContent = detail;
  const yes = document.createElement('button');
  yes.textContent = 'Save new version';
  const no = document.createElement('button');
  no.textContent = 'Keep current';
  no.style.marginLeft = '8px';
  for (const b of [yes, no]) b.addEventListener('mousedown', (e) => e.preventDefault());
  dialog.append(heading, body, yes, no);

  const finish = (ok) => {
    window.removeEventListener('keydown', onKey, true);
    dialog.remove();
    resolve(ok);
  };
  const onKey = (e) => {
    const k = e.key.toLowerCase();
    if (k === 'y' || k === 'enter') { e.preventDefault(); e.stopImmediatePropagation(); finish(true); }
    if (k === 'n' || k === 'escape') { e.preventDefault(); e.stopImmediatePropagation(); finish(false); }
  };
  yes.addEventListener('click', () => finish(true));
  no.addEventListener('click', () => finish(false));
  window.addEventListener('keydown', onKey, true);
  document.body.appendChild(dialog);
  dialog.show();
})`
